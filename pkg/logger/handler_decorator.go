package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor extracts a slog attribute from context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// LogHandlerDecorator wraps a slog.Handler and appends attributes pulled from
// the record's context. Extraction runs per record, so a task or request id
// follows the context it was logged with instead of the logger it was
// logged through.
type LogHandlerDecorator struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// NewLogHandlerDecorator creates a new decorated handler.
// Nil extractors are dropped so optional ones can be passed unconditionally.
func NewLogHandlerDecorator(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &LogHandlerDecorator{next: next, extractors: clean}
}

func (h *LogHandlerDecorator) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle appends every extracted attribute whose key the record does not
// already carry. An explicit attribute on the log call wins over the context,
// so a worker logging task_id by hand never emits the key twice.
func (h *LogHandlerDecorator) Handle(ctx context.Context, rec slog.Record) error {
	if len(h.extractors) == 0 {
		return h.next.Handle(ctx, rec)
	}

	var present map[string]struct{}
	for _, ex := range h.extractors {
		attr, ok := ex(ctx)
		if !ok || attr.Key == "" {
			continue
		}
		if present == nil {
			present = recordKeys(rec)
		}
		if _, dup := present[attr.Key]; dup {
			continue
		}
		present[attr.Key] = struct{}{}
		rec.AddAttrs(attr)
	}
	return h.next.Handle(ctx, rec)
}

// WithAttrs keeps the extractors on the derived handler.
func (h *LogHandlerDecorator) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandlerDecorator{
		next:       h.next.WithAttrs(attrs),
		extractors: h.extractors,
	}
}

// WithGroup keeps the extractors on the derived handler.
func (h *LogHandlerDecorator) WithGroup(name string) slog.Handler {
	return &LogHandlerDecorator{
		next:       h.next.WithGroup(name),
		extractors: h.extractors,
	}
}

func recordKeys(rec slog.Record) map[string]struct{} {
	keys := make(map[string]struct{}, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		keys[a.Key] = struct{}{}
		return true
	})
	return keys
}
