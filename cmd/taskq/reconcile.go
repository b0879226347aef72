package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrymomot/taskq/pkg/queue"
	"github.com/dmitrymomot/taskq/pkg/schema"
)

func runReconcile(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	apply := fs.Bool("apply", false, "apply the changes instead of only reporting them")
	tableFile := fs.String("table", "", "YAML table definition (defaults to the task table)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	table := queue.TaskTable(a.queueCfg.Table)
	if *tableFile != "" {
		if table, err = schema.LoadTableFile(*tableFile); err != nil {
			return err
		}
	}

	r, err := schema.New(a.db, schema.WithLogger(a.log))
	if err != nil {
		return err
	}

	diff, err := r.Plan(ctx, table)
	if err != nil {
		return err
	}
	if diff.Empty() {
		fmt.Fprintf(stdout, "%s: up to date\n", diff.Table)
		return nil
	}

	for _, stmt := range diff.Statements() {
		fmt.Fprintf(stdout, "%s;\n", stmt)
	}
	if !*apply {
		return errDrift
	}

	ok, err := r.Reconcile(ctx, table, true)
	if err != nil {
		return err
	}
	if !ok {
		return errDrift
	}
	fmt.Fprintf(stdout, "%s: reconciled\n", diff.Table)
	return nil
}
