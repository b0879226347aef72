package queue

import (
	"log/slog"
	"time"
)

// PeriodicOption is a functional option for configuring a PeriodicEnqueuer
type PeriodicOption func(*periodicOptions)

type periodicOptions struct {
	checkInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// WithCheckInterval sets how often due tasks are checked
func WithCheckInterval(d time.Duration) PeriodicOption {
	return func(o *periodicOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithPeriodicClock replaces time.Now, mostly for tests.
func WithPeriodicClock(now func() time.Time) PeriodicOption {
	return func(o *periodicOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPeriodicLogger sets the logger for the periodic enqueuer
func WithPeriodicLogger(logger *slog.Logger) PeriodicOption {
	return func(o *periodicOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// PeriodicTaskOption is a functional option for configuring a periodic task
type PeriodicTaskOption func(*periodicTaskOptions)

type periodicTaskOptions struct {
	priority   Priority
	maxRetries int
	params     any
}

// WithTaskPriority sets the priority of every enqueued run
func WithTaskPriority(priority Priority) PeriodicTaskOption {
	return func(o *periodicTaskOptions) {
		o.priority = priority
	}
}

// WithTaskMaxRetries sets max_retry_count of every enqueued run
func WithTaskMaxRetries(maxRetries int) PeriodicTaskOption {
	return func(o *periodicTaskOptions) {
		if maxRetries >= 0 {
			o.maxRetries = maxRetries
		}
	}
}

// WithTaskParams sets the params stored with every enqueued run
func WithTaskParams(params any) PeriodicTaskOption {
	return func(o *periodicTaskOptions) {
		o.params = params
	}
}
