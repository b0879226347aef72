package queue

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a task. The zero value maps to SQL NULL
// and means the task has never been claimed.
type Status string

const (
	StatusUnset   Status = ""
	StatusWorking Status = "working"
	StatusError   Status = "error"
	StatusDone    Status = "done"
)

// Tier is an eligibility class used to order dispatch. Tiers are strictly
// ranked: scheduled before retry before plain.
type Tier string

const (
	TierScheduled Tier = "scheduled"
	TierRetry     Tier = "retry"
	TierPlain     Tier = "plain"
)

// Priority orders tasks within a tier, higher first. The named levels are
// conventions; any integer is accepted, negative values included.
type Priority int

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Task is one persisted unit of work. Nullable columns are pointers.
type Task struct {
	ID            int64      `json:"task_id"`
	Module        string     `json:"module"`
	Func          string     `json:"func"`
	Params        *string    `json:"params,omitempty"`
	Result        *string    `json:"result,omitempty"`
	Status        Status     `json:"status,omitempty"`
	RetryCount    int        `json:"retry_count"`
	MaxRetryCount int        `json:"max_retry_count"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	DeferTime     *time.Time `json:"defer_time,omitempty"`
	CreateTime    *time.Time `json:"create_time,omitempty"`
	StartedTime   *time.Time `json:"started_time,omitempty"`
	FinishedTime  *time.Time `json:"finished_time,omitempty"`
	Priority      Priority   `json:"priority"`
	WorkerHost    *string    `json:"worker_host,omitempty"`
	ParentTaskID  *int64     `json:"parent_task_id,omitempty"`
}

// Name returns the handler key of the task, module.func.
func (t *Task) Name() string {
	return TaskName(t.Module, t.Func)
}

// Exhausted reports whether the task failed and has no retries left.
func (t *Task) Exhausted() bool {
	return t.Status == StatusError && t.RetryCount >= t.MaxRetryCount
}

// Tier reports which tier would claim the task at now, or false when the
// task is not claimable.
func (t *Task) Tier(now time.Time) (Tier, bool) {
	switch {
	case t.Status == StatusUnset && t.ScheduledTime != nil:
		if t.ScheduledTime.After(now) {
			return "", false
		}
		return TierScheduled, true
	case t.Status == StatusError && t.RetryCount < t.MaxRetryCount:
		return TierRetry, true
	case t.Status == StatusUnset:
		return TierPlain, true
	}
	return "", false
}

// TaskName joins module and function into a handler key.
func TaskName(module, function string) string {
	return module + "." + function
}

// SplitTaskName is the inverse of TaskName. The function is everything
// after the last dot.
func SplitTaskName(name string) (module, function string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// Stats is a snapshot of task counts by state.
type Stats struct {
	Ready     int64 `json:"ready"`
	Scheduled int64 `json:"scheduled"`
	Working   int64 `json:"working"`
	Retrying  int64 `json:"retrying"`
	Exhausted int64 `json:"exhausted"`
	Done      int64 `json:"done"`
	Other     int64 `json:"other"`
	Total     int64 `json:"total"`
}
