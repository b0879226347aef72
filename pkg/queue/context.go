package queue

import "context"

type taskCtxKey struct{}

// TaskInfo identifies the task a handler is running for.
type TaskInfo struct {
	ID         int64
	Name       string
	RetryCount int
	WorkerID   string
}

// WithTaskInfo returns a copy of ctx carrying info.
func WithTaskInfo(ctx context.Context, info TaskInfo) context.Context {
	return context.WithValue(ctx, taskCtxKey{}, info)
}

// TaskInfoFromContext returns the task info stored by the worker for the
// handler invocation, if any.
func TaskInfoFromContext(ctx context.Context) (TaskInfo, bool) {
	info, ok := ctx.Value(taskCtxKey{}).(TaskInfo)
	return info, ok
}
