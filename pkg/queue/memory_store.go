package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/taskq/pkg/condition"
)

// MemoryStore implements Repository in process memory for tests and local
// development. It follows the same tier order and failure bookkeeping as
// Scheduler; a single mutex stands in for row locks.
type MemoryStore struct {
	storeOptions

	mu     sync.Mutex
	tasks  map[int64]*Task
	nextID int64
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...SchedulerOption) *MemoryStore {
	return &MemoryStore{
		storeOptions: newStoreOptions(opts),
		tasks:        make(map[int64]*Task),
	}
}

// Enqueue implements EnqueuerRepository.
func (ms *MemoryStore) Enqueue(ctx context.Context, module, function string, params any, opts ...EnqueueOption) (int64, error) {
	if module == "" || function == "" {
		return 0, errors.Join(ErrEnqueue, ErrModuleRequired)
	}

	o := &enqueueOptions{priority: ms.defaultPriority, maxRetries: ms.defaultMaxRetries}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return 0, errors.Join(ErrEnqueue, err)
	}

	encoded, err := encodeValue(params)
	if err != nil {
		return 0, errors.Join(ErrEnqueue, err)
	}

	ms.mu.Lock()
	now := ms.now()
	ms.nextID++
	task := &Task{
		ID:            ms.nextID,
		Module:        module,
		Func:          function,
		Params:        encoded,
		MaxRetryCount: o.maxRetries,
		ScheduledTime: o.scheduledTime(now),
		DeferTime:     o.deferTime,
		CreateTime:    &now,
		Priority:      o.priority,
		ParentTaskID:  o.parentID,
	}
	ms.tasks[task.ID] = task
	ms.mu.Unlock()

	ms.notify(ctx, task.ID)
	return task.ID, nil
}

// AcquireNext implements WorkerRepository.
func (ms *MemoryStore) AcquireNext(ctx context.Context) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrClaim, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for _, tier := range []Tier{TierScheduled, TierRetry, TierPlain} {
		var best *Task
		for _, task := range ms.tasks {
			if got, ok := task.Tier(now); !ok || got != tier {
				continue
			}
			if best == nil || tierLess(tier, task, best) {
				best = task
			}
		}
		if best == nil {
			continue
		}

		best.Status = StatusWorking
		best.StartedTime = &now
		host := ms.workerHost
		best.WorkerHost = &host
		return best.clone(), nil
	}
	return nil, nil
}

// tierLess orders candidates the way the tier queries' ORDER BY does, with
// task_id as the final tie-breaker.
func tierLess(tier Tier, a, b *Task) bool {
	var c int
	switch tier {
	case TierScheduled:
		c = a.ScheduledTime.Compare(*b.ScheduledTime)
	case TierRetry:
		c = compareNullTimes(a.FinishedTime, b.FinishedTime)
	}
	if c == 0 {
		c = cmp.Compare(b.Priority, a.Priority)
	}
	if c == 0 {
		c = cmp.Compare(a.ID, b.ID)
	}
	return c < 0
}

// compareNullTimes sorts NULL last, like PostgreSQL ASC.
func compareNullTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

// RecordFailure implements WorkerRepository.
func (ms *MemoryStore) RecordFailure(_ context.Context, taskID int64, errText string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}

	now := ms.now()
	task.Status = StatusError
	task.FinishedTime = &now
	task.Result = &errText
	if task.MaxRetryCount > 0 {
		task.RetryCount++
	}
	return nil
}

// Complete implements WorkerRepository.
func (ms *MemoryStore) Complete(ctx context.Context, taskID int64, result string) error {
	return ms.UpdateTask(ctx, taskID, map[string]any{
		ColStatus:       StatusDone,
		ColFinishedTime: ms.now(),
		ColResult:       result,
	})
}

// UpdateTask implements Repository.
func (ms *MemoryStore) UpdateTask(_ context.Context, taskID int64, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}

	// Validate everything before touching the task so a bad field leaves it unchanged.
	values := make(map[string]any, len(fields))
	for col, v := range fields {
		value, err := columnValue(col, v)
		if err != nil {
			return err
		}
		values[col] = value
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}

	patched := *task
	for _, col := range slices.Sorted(maps.Keys(values)) {
		if err := patched.set(col, values[col]); err != nil {
			return err
		}
	}
	*task = patched
	return nil
}

// GetTask implements Reader.
func (ms *MemoryStore) GetTask(_ context.Context, taskID int64) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.clone(), nil
}

// ListTasks implements Reader. Raw SQL filters ($, @ and !@) are not supported.
func (ms *MemoryStore) ListTasks(_ context.Context, filter condition.Fields, limit int) ([]Task, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	tasks := make([]Task, 0)
	for _, id := range slices.Sorted(maps.Keys(ms.tasks)) {
		task := ms.tasks[id]
		ok, err := matchTask(task, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		tasks = append(tasks, *task.clone())
		if len(tasks) == listLimit(limit) {
			break
		}
	}
	return tasks, nil
}

// FindPending implements PeriodicRepository.
func (ms *MemoryStore) FindPending(ctx context.Context, module, function string) (*Task, error) {
	tasks, err := ms.ListTasks(ctx, condition.Fields{
		ColStatus: nil,
		ColModule: module,
		ColFunc:   function,
	}, 1)
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return &tasks[0], nil
}

// Stats implements Reader.
func (ms *MemoryStore) Stats(context.Context) (Stats, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var st Stats
	for _, task := range ms.tasks {
		st.Total++
		switch {
		case task.Status == StatusUnset && task.ScheduledTime != nil && task.ScheduledTime.After(now):
			st.Scheduled++
		case task.Status == StatusUnset:
			st.Ready++
		case task.Status == StatusWorking:
			st.Working++
		case task.Status == StatusError && task.RetryCount < task.MaxRetryCount:
			st.Retrying++
		case task.Status == StatusError:
			st.Exhausted++
		case task.Status == StatusDone:
			st.Done++
		default:
			st.Other++
		}
	}
	return st, nil
}

func (t *Task) clone() *Task {
	c := *t
	return &c
}

// set assigns a value already converted by columnValue.
func (t *Task) set(col string, v any) error {
	var err error
	switch col {
	case ColModule:
		t.Module, err = asString(v)
	case ColFunc:
		t.Func, err = asString(v)
	case ColParams:
		t.Params, err = asNullString(v)
	case ColResult:
		t.Result, err = asNullString(v)
	case ColStatus:
		var s *string
		s, err = asNullString(v)
		t.Status = StatusUnset
		if s != nil {
			t.Status = Status(*s)
		}
	case ColRetryCount:
		t.RetryCount, err = asInt(v)
	case ColMaxRetryCount:
		t.MaxRetryCount, err = asInt(v)
	case ColPriority:
		var p int
		p, err = asInt(v)
		t.Priority = Priority(p)
	case ColScheduledTime:
		t.ScheduledTime, err = asNullTime(v)
	case ColDeferTime:
		t.DeferTime, err = asNullTime(v)
	case ColCreateTime:
		t.CreateTime, err = asNullTime(v)
	case ColStartedTime:
		t.StartedTime, err = asNullTime(v)
	case ColFinishedTime:
		t.FinishedTime, err = asNullTime(v)
	case ColWorkerHost:
		t.WorkerHost, err = asNullString(v)
	case ColParentTaskID:
		var id *int64
		id, err = asNullInt64(v)
		t.ParentTaskID = id
	default:
		return errors.Join(ErrUnknownField, fmt.Errorf("column %q", col))
	}
	if err != nil {
		return fmt.Errorf("column %q: %w", col, err)
	}
	return nil
}

// value returns the column as a comparable value, nil for NULL.
func (t *Task) value(col string) any {
	switch col {
	case ColTaskID:
		return t.ID
	case ColModule:
		return t.Module
	case ColFunc:
		return t.Func
	case ColParams:
		return derefOrNil(t.Params)
	case ColResult:
		return derefOrNil(t.Result)
	case ColStatus:
		if t.Status == StatusUnset {
			return nil
		}
		return string(t.Status)
	case ColRetryCount:
		return int64(t.RetryCount)
	case ColMaxRetryCount:
		return int64(t.MaxRetryCount)
	case ColPriority:
		return int64(t.Priority)
	case ColScheduledTime:
		return derefOrNil(t.ScheduledTime)
	case ColDeferTime:
		return derefOrNil(t.DeferTime)
	case ColCreateTime:
		return derefOrNil(t.CreateTime)
	case ColStartedTime:
		return derefOrNil(t.StartedTime)
	case ColFinishedTime:
		return derefOrNil(t.FinishedTime)
	case ColWorkerHost:
		return derefOrNil(t.WorkerHost)
	case ColParentTaskID:
		return derefOrNil(t.ParentTaskID)
	}
	return nil
}

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
