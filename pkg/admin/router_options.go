package admin

import (
	"context"
	"log/slog"
	"time"
)

// RouterOption configures the admin router.
type RouterOption func(*routerConfig)

type routerConfig struct {
	logger       *slog.Logger
	checks       []Check
	checkTimeout time.Duration
	writable     bool
}

// WithRouterLogger sets the logger for access and error logs.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithReadinessCheck adds a named probe to GET /readyz.
func WithReadinessCheck(name string, fn func(ctx context.Context) error) RouterOption {
	return func(c *routerConfig) {
		if fn != nil {
			c.checks = append(c.checks, Check{Name: name, Fn: fn})
		}
	}
}

// WithCheckTimeout bounds the whole readiness probe. Defaults to 5s.
func WithCheckTimeout(d time.Duration) RouterOption {
	return func(c *routerConfig) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

// WithTaskUpdates enables PATCH /tasks/{id}. The store must implement
// Updater.
func WithTaskUpdates() RouterOption {
	return func(c *routerConfig) { c.writable = true }
}
