package queue

import (
	"context"

	"github.com/dmitrymomot/taskq/pkg/condition"
)

// EnqueuerRepository creates tasks.
type EnqueuerRepository interface {
	Enqueue(ctx context.Context, module, function string, params any, opts ...EnqueueOption) (int64, error)
}

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// AcquireNext claims the next eligible task. It returns nil, nil when the queue is empty.
	AcquireNext(ctx context.Context) (*Task, error)

	// Complete marks a claimed task as done and stores its result.
	Complete(ctx context.Context, taskID int64, result string) error

	// RecordFailure marks a claimed task as failed and consumes one retry.
	RecordFailure(ctx context.Context, taskID int64, errText string) error
}

// PeriodicRepository is what the periodic enqueuer needs.
type PeriodicRepository interface {
	EnqueuerRepository

	// FindPending returns an unclaimed task for module.function, or nil.
	FindPending(ctx context.Context, module, function string) (*Task, error)
}

// Reader exposes read-only queries for operators.
type Reader interface {
	GetTask(ctx context.Context, taskID int64) (*Task, error)
	ListTasks(ctx context.Context, filter condition.Fields, limit int) ([]Task, error)
	Stats(ctx context.Context) (Stats, error)
}

// Repository is the full task store implemented by Scheduler and MemoryStore.
type Repository interface {
	WorkerRepository
	PeriodicRepository
	Reader

	// UpdateTask patches arbitrary task columns.
	UpdateTask(ctx context.Context, taskID int64, fields map[string]any) error
}
