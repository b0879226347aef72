package admin

import (
	"log/slog"
	"time"
)

// ServerOption configures the admin Server.
type ServerOption func(*serverConfig)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *serverConfig) { c.addr = addr }
}

func WithReadTimeout(d time.Duration) ServerOption {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(c *serverConfig) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) ServerOption {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(c *serverConfig) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) ServerOption {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(c *serverConfig) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds the graceful shutdown.
func WithShutdownTimeout(d time.Duration) ServerOption {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(c *serverConfig) { c.shutdownTimeout = d }
}

// WithServerLogger sets the server logger. Defaults to slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStartHook registers a callback invoked with the bound address once the
// listener is open.
func WithStartHook(h func(addr string)) ServerOption {
	if h == nil {
		panic("WithStartHook: nil hook")
	}
	return func(c *serverConfig) { c.startHooks = append(c.startHooks, h) }
}
