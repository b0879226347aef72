package queue

import "time"

// EnqueueOption is a functional option for the Enqueue method
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	priority    Priority
	maxRetries  int
	delay       time.Duration
	scheduledAt *time.Time
	deferTime   *time.Time
	parentID    *int64
	module      string
	function    string
}

// WithPriority sets the priority for the task
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = priority
	}
}

// WithMaxRetries sets max_retry_count, the total number of failed attempts
// the task may accumulate. The retry tier re-surfaces a failed task while
// retry_count < max_retry_count, so n allows n attempts in all (the first
// run plus n-1 retries). Zero and one both mean a failure is final.
func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxRetries = maxRetries
	}
}

// WithDelay schedules the task relative to enqueue time
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithScheduledAt sets a specific time for the task to be processed.
// It takes precedence over WithDelay.
func WithScheduledAt(scheduledAt time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &scheduledAt
	}
}

// WithDeferTime records the defer_time column. It is informational and does
// not affect claiming.
func WithDeferTime(deferTime time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.deferTime = &deferTime
	}
}

// WithParent links the task to the task that spawned it
func WithParent(taskID int64) EnqueueOption {
	return func(o *enqueueOptions) {
		o.parentID = &taskID
	}
}

// WithTaskName overrides the module and function derived from the payload
// type by the typed Enqueuer
func WithTaskName(module, function string) EnqueueOption {
	return func(o *enqueueOptions) {
		if module != "" && function != "" {
			o.module, o.function = module, function
		}
	}
}

func (o *enqueueOptions) validate() error {
	if o.maxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// scheduledTime resolves the scheduled_time column; nil puts the task in the plain tier.
func (o *enqueueOptions) scheduledTime(now time.Time) *time.Time {
	if o.scheduledAt != nil {
		return o.scheduledAt
	}
	if o.delay > 0 {
		t := now.Add(o.delay)
		return &t
	}
	return nil
}
