package main

import (
	"context"
	"flag"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskq/pkg/admin"
	"github.com/dmitrymomot/taskq/pkg/config"
	"github.com/dmitrymomot/taskq/pkg/pg"
	"github.com/dmitrymomot/taskq/pkg/queue"
	"github.com/dmitrymomot/taskq/pkg/redis"
)

func runServe(ctx context.Context, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	periodicPath := fs.String("periodic", "", "YAML file with periodic task definitions")
	allowUpdates := fs.Bool("allow-updates", false, "enable PATCH /tasks/{id}")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var entries []periodicEntry
	if *periodicPath != "" {
		var err error
		if entries, err = loadPeriodicFile(*periodicPath); err != nil {
			return err
		}
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var adminCfg admin.Config
	if err := config.Load(&adminCfg); err != nil {
		return err
	}

	client, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}
	notifier, err := a.notifier(client)
	if err != nil {
		return err
	}

	s, err := a.scheduler(queue.WithNotifier(notifier))
	if err != nil {
		return err
	}

	routerOpts := []admin.RouterOption{
		admin.WithRouterLogger(a.log),
		admin.WithReadinessCheck("postgres", pg.Healthcheck(a.pool)),
	}
	if client != nil {
		routerOpts = append(routerOpts, admin.WithReadinessCheck("redis", redis.Healthcheck(client)))
	}
	if *allowUpdates {
		routerOpts = append(routerOpts, admin.WithTaskUpdates())
	}
	router, err := admin.NewRouter(s, routerOpts...)
	if err != nil {
		return err
	}
	srv := admin.NewServerFromConfig(adminCfg, admin.WithServerLogger(a.log))

	var periodic *queue.PeriodicEnqueuer
	if len(entries) > 0 {
		periodic, err = queue.NewPeriodicEnqueuer(s,
			queue.WithCheckInterval(a.queueCfg.CheckInterval),
			queue.WithPeriodicLogger(a.log))
		if err != nil {
			return err
		}
		if err := registerPeriodic(periodic, entries); err != nil {
			return err
		}
		a.log.Info("periodic tasks loaded", slog.Int("count", len(entries)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, router) })
	if periodic != nil {
		g.Go(periodic.Run(gctx))
	}

	return g.Wait()
}
