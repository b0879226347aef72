package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/taskq/pkg/admin"
	"github.com/dmitrymomot/taskq/pkg/config"
	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/pg"
	"github.com/dmitrymomot/taskq/pkg/queue"
	"github.com/dmitrymomot/taskq/pkg/redis"
)

// app holds the connections and settings shared by the commands.
type app struct {
	log      *slog.Logger
	pgCfg    pg.Config
	queueCfg queue.Config
	pool     *pgxpool.Pool
	db       *pg.DB
}

// newApp loads configuration and connects to PostgreSQL.
func newApp(ctx context.Context) (*app, error) {
	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return nil, err
	}
	log := newLogger(logCfg)

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	var queueCfg queue.Config
	if err := config.Load(&queueCfg); err != nil {
		return nil, err
	}
	if queueCfg.WorkerHost == "" {
		queueCfg.WorkerHost, _ = os.Hostname()
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	db, err := pg.NewFromPool(pool, pg.WithLogger(log))
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		log:      log,
		pgCfg:    pgCfg,
		queueCfg: queueCfg,
		pool:     pool,
		db:       db,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// scheduler builds the PostgreSQL-backed store with the configured defaults.
func (a *app) scheduler(extra ...queue.SchedulerOption) (*queue.Scheduler, error) {
	opts := []queue.SchedulerOption{
		queue.WithTable(a.queueCfg.Table),
		queue.WithWorkerHost(a.queueCfg.WorkerHost),
		queue.WithDefaultMaxRetries(a.queueCfg.DefaultMaxRetries),
		queue.WithDefaultPriority(queue.Priority(a.queueCfg.DefaultPriority)),
		queue.WithSchedulerLogger(a.log),
	}
	return queue.NewScheduler(a.db, append(opts, extra...)...)
}

// redisClient connects when REDIS_URL is set and returns nil otherwise.
func (a *app) redisClient(ctx context.Context) (*goredis.Client, error) {
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return client, nil
}

// notifier wires enqueue notifications through Redis when it is configured.
func (a *app) notifier(client *goredis.Client) (queue.Notifier, error) {
	if client == nil {
		return nil, nil
	}
	n, err := queue.NewRedisNotifier(client,
		queue.WithChannel(a.queueCfg.NotifyChannel),
		queue.WithNotifierLogger(a.log))
	if err != nil {
		return nil, errors.Join(errors.New("redis notifier"), err)
	}
	return n, nil
}

func newLogger(cfg logger.Config) *slog.Logger {
	opts := append(logger.FromConfig(cfg),
		logger.WithOutput(os.Stderr),
		logger.WithContextExtractors(taskExtractor, admin.RequestIDExtractor),
	)
	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return log
}

// taskExtractor tags records logged from inside a task handler.
func taskExtractor(ctx context.Context) (slog.Attr, bool) {
	info, ok := queue.TaskInfoFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.Group("task",
		slog.Int64("id", info.ID),
		slog.String("name", info.Name),
		logger.RetryCount(info.RetryCount),
		logger.WorkerID(info.WorkerID),
	), true
}
