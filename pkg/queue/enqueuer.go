package queue

import (
	"context"
	"fmt"
	"reflect"
)

// Enqueuer is a typed front end over an EnqueuerRepository. The task's
// module and function default to the payload's package and type name, so
// NewTaskHandler[T] on the worker side picks it up without extra wiring.
type Enqueuer[T any] struct {
	repo     EnqueuerRepository
	defaults []EnqueueOption
}

// NewEnqueuer creates an enqueuer for payloads of type T. defaults are
// applied to every Enqueue call before the per-call options.
func NewEnqueuer[T any](repo EnqueuerRepository, defaults ...EnqueueOption) (*Enqueuer[T], error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	return &Enqueuer[T]{
		repo:     repo,
		defaults: defaults,
	}, nil
}

// Enqueue stores payload as the params of a new task and returns its id.
func (e *Enqueuer[T]) Enqueue(ctx context.Context, payload T, opts ...EnqueueOption) (int64, error) {
	if isNilPayload(payload) {
		return 0, ErrPayloadNil
	}

	all := append(append(make([]EnqueueOption, 0, len(e.defaults)+len(opts)), e.defaults...), opts...)

	options := &enqueueOptions{}
	for _, opt := range all {
		opt(options)
	}

	module, function := options.module, options.function
	if module == "" {
		module, function = SplitTaskName(qualifiedStructName(payload))
	}

	id, err := e.repo.Enqueue(ctx, module, function, payload, all...)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue task %q: %w", TaskName(module, function), err)
	}
	return id, nil
}

func isNilPayload(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
