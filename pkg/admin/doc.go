// Package admin exposes a small HTTP surface for operating a task queue:
// liveness and readiness probes, queue statistics and task inspection.
//
// NewRouter builds a chi router over any queue.Reader. GET /tasks accepts
// status, module, func, worker_host, started_before, scheduled_before and
// limit query parameters, which is enough to find tasks stuck in the working
// state:
//
//	GET /tasks?status=working&started_before=2025-01-02T15:04:05Z
//
// Server runs the router with graceful shutdown when its context ends.
//
//	router, err := admin.NewRouter(scheduler,
//	    admin.WithReadinessCheck("postgres", pg.Healthcheck(pool)))
//	if err != nil {
//	    return err
//	}
//	srv := admin.NewServerFromConfig(cfg)
//	return srv.Run(ctx, router)
package admin
