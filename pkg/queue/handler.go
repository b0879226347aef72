package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler executes tasks for one module.func name. The returned string is
	// stored in the result column.
	Handler interface {
		Name() string
		Handle(ctx context.Context, params json.RawMessage) (string, error)
	}

	TaskHandlerFunc[T, R any] func(ctx context.Context, params T) (R, error)
	FuncHandlerFunc           func(ctx context.Context) error
)

// NewTaskHandler creates a handler named after the params type, matching
// tasks enqueued through Enqueuer[T].
func NewTaskHandler[T, R any](handler TaskHandlerFunc[T, R]) Handler {
	var params T
	module, function := SplitTaskName(qualifiedStructName(params))
	return NewNamedHandler(module, function, handler)
}

// NewNamedHandler creates a typed handler for an explicit module and function.
func NewNamedHandler[T, R any](module, function string, handler TaskHandlerFunc[T, R]) Handler {
	return &typedHandler[T, R]{
		name:    TaskName(module, function),
		handler: handler,
	}
}

// NewFuncHandler creates a handler that ignores params, for periodic jobs.
func NewFuncHandler(module, function string, handler FuncHandlerFunc) Handler {
	return &funcHandler{
		name:    TaskName(module, function),
		handler: handler,
	}
}

type typedHandler[T, R any] struct {
	name    string
	handler TaskHandlerFunc[T, R]
}

func (h *typedHandler[T, R]) Name() string {
	return h.name
}

func (h *typedHandler[T, R]) Handle(ctx context.Context, params json.RawMessage) (string, error) {
	var p T
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("decode params: %w", err)
		}
	}

	result, err := h.handler(ctx, p)
	if err != nil {
		return "", err
	}
	return encodeResult(result)
}

type funcHandler struct {
	name    string
	handler FuncHandlerFunc
}

func (h *funcHandler) Name() string {
	return h.name
}

func (h *funcHandler) Handle(ctx context.Context, _ json.RawMessage) (string, error) {
	return "", h.handler(ctx)
}

func encodeResult(v any) (string, error) {
	s, err := encodeValue(v)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}
