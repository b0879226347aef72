package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pollInterval       time.Duration
	taskTimeout        time.Duration
	maxConcurrentTasks int
	wakeup             <-chan struct{}
	logger             *slog.Logger
}

// WithPollInterval sets how often the worker checks for new tasks
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithTaskTimeout bounds a single handler run
func WithTaskTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.taskTimeout = d
		}
	}
}

// WithMaxConcurrentTasks sets the maximum number of concurrent tasks
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithWakeup makes the worker poll as soon as ch fires, in addition to the
// regular interval. See ChanNotifier and RedisNotifier.Subscribe.
func WithWakeup(ch <-chan struct{}) WorkerOption {
	return func(o *workerOptions) {
		o.wakeup = ch
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
