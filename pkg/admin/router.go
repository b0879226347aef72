package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/taskq/pkg/queue"
)

// Store is the read side of the task store used by the admin routes.
// Both queue.Scheduler and queue.MemoryStore satisfy it.
type Store interface {
	queue.Reader
}

// Updater is implemented by stores that accept PATCH /tasks/{id}.
type Updater interface {
	UpdateTask(ctx context.Context, taskID int64, fields map[string]any) error
}

// NewRouter mounts the admin routes over store:
//
//	GET   /healthz      liveness
//	GET   /readyz       readiness checks
//	GET   /stats        queue.Stats
//	GET   /tasks        filtered task list
//	GET   /tasks/{id}   one task
//	PATCH /tasks/{id}   column patch, with WithTaskUpdates
func NewRouter(store Store, opts ...RouterOption) (chi.Router, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	cfg := &routerConfig{
		logger:       slog.Default(),
		checkTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{store: store, logger: cfg.logger}
	if cfg.writable {
		u, ok := store.(Updater)
		if !ok {
			return nil, ErrStoreNotWritable
		}
		h.updater = u
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(cfg.logger))

	r.Get("/healthz", livenessHandler)
	r.Get("/readyz", readinessHandler(cfg.logger, cfg.checkTimeout, cfg.checks))
	r.Get("/stats", h.stats)

	r.Route("/tasks", func(tr chi.Router) {
		tr.Get("/", h.listTasks)
		tr.Get("/{id}", h.getTask)
		if h.updater != nil {
			tr.Patch("/{id}", h.updateTask)
		}
	})

	return r, nil
}
