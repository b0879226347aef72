package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TaskID records the task identifier under the key "task_id".
func TaskID(id int64) slog.Attr {
	return slog.Int64("task_id", id)
}

// TaskName records a module.func task name under the key "task_name".
func TaskName(name string) slog.Attr {
	return slog.String("task_name", name)
}

// WorkerID records the worker instance identifier under the key "worker_id".
// An empty id yields an empty Attr.
func WorkerID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("worker_id", id)
}

// WorkerHost records the claiming host under the key "worker_host".
func WorkerHost(host string) slog.Attr {
	if host == "" {
		return slog.Attr{}
	}
	return slog.String("worker_host", host)
}

// Table records a qualified table name under the key "table".
func Table(name string) slog.Attr {
	return slog.String("table", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
