// Command taskq operates a PostgreSQL task queue: it reconciles the task
// table, applies index migrations, enqueues tasks, prints statistics and
// serves the admin HTTP surface next to the periodic enqueuer.
//
// Configuration comes from the environment and an optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// errDrift reports a reconcile run that left the table out of date.
var errDrift = errors.New("task table is not reconciled")

// errUsage marks command-line mistakes.
var errUsage = errors.New("usage error")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = []command{
	{"reconcile", "compare the task table with its declaration and optionally apply changes", runReconcile},
	{"migrate", "apply the embedded index migrations", runMigrate},
	{"enqueue", "insert one task", runEnqueue},
	{"stats", "print queue statistics as JSON", runStats},
	{"serve", "run the admin HTTP server and periodic tasks", runServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "taskq: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], stdout)
		}
	}

	fmt.Fprintf(stderr, "taskq: unknown command %q\n\n", args[0])
	printUsage(stderr)
	return errUsage
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: taskq <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}
