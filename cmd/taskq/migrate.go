package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrymomot/taskq/pkg/pg"
	"github.com/dmitrymomot/taskq/pkg/queue"
)

func runMigrate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dir := fs.String("dir", "", "read migrations from this directory instead of the embedded set")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.pgCfg
	if *dir != "" {
		cfg.MigrationsPath = *dir
		err = pg.Migrate(ctx, a.pool, cfg, a.log, nil)
	} else {
		cfg.MigrationsPath = queue.MigrationsPath
		err = pg.Migrate(ctx, a.pool, cfg, a.log, queue.Migrations)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "migrations applied")
	return nil
}
