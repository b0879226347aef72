package queue

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// SchedulerOption is a functional option for configuring a Scheduler or a MemoryStore
type SchedulerOption func(*storeOptions)

// storeOptions is shared by Scheduler and MemoryStore.
type storeOptions struct {
	table             string
	workerHost        string
	now               func() time.Time
	notifier          Notifier
	logger            *slog.Logger
	defaultMaxRetries int
	defaultPriority   Priority
}

func newStoreOptions(opts []SchedulerOption) storeOptions {
	host, _ := os.Hostname()
	o := storeOptions{
		table:           DefaultTable,
		workerHost:      host,
		now:             time.Now,
		logger:          slog.Default(),
		defaultPriority: PriorityDefault,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithWorkerHost sets the identity written to worker_host on claim.
// Defaults to the hostname.
func WithWorkerHost(host string) SchedulerOption {
	return func(s *storeOptions) {
		if host != "" {
			s.workerHost = host
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *storeOptions) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNotifier announces every enqueued task id, e.g. to wake idle workers.
func WithNotifier(n Notifier) SchedulerOption {
	return func(s *storeOptions) {
		s.notifier = n
	}
}

// WithTable sets the task table name. Defaults to DefaultTable.
func WithTable(name string) SchedulerOption {
	return func(s *storeOptions) {
		if name != "" {
			s.table = name
		}
	}
}

// WithDefaultMaxRetries sets the retry budget used when Enqueue gets no WithMaxRetries.
func WithDefaultMaxRetries(n int) SchedulerOption {
	return func(s *storeOptions) {
		if n >= 0 {
			s.defaultMaxRetries = n
		}
	}
}

// WithDefaultPriority sets the priority used when Enqueue gets no WithPriority.
func WithDefaultPriority(p Priority) SchedulerOption {
	return func(s *storeOptions) {
		s.defaultPriority = p
	}
}

// WithSchedulerLogger sets the logger for the scheduler
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *storeOptions) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WorkerHost returns the identity written to claimed tasks.
func (o *storeOptions) WorkerHost() string {
	return o.workerHost
}

func (o *storeOptions) notify(ctx context.Context, taskID int64) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, taskID); err != nil {
		o.logger.WarnContext(ctx, "failed to notify workers",
			logger.TaskID(taskID),
			logger.Error(err))
	}
}
