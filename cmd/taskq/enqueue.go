package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrymomot/taskq/pkg/queue"
)

type enqueueFlags struct {
	module   string
	function string
	params   string
	priority int
	hasPrio  bool
	retries  int
	delay    time.Duration
	at       string
	parent   int64
}

func parseEnqueueFlags(args []string) (enqueueFlags, error) {
	var f enqueueFlags
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.StringVar(&f.module, "module", "", "task module (required)")
	fs.StringVar(&f.function, "func", "", "task function (required)")
	fs.StringVar(&f.params, "params", "", "task parameters as JSON")
	fs.IntVar(&f.priority, "priority", 0, "priority, higher runs first")
	fs.IntVar(&f.retries, "retries", -1, "max_retry_count, total attempts allowed")
	fs.DurationVar(&f.delay, "delay", 0, "run no earlier than now plus this delay")
	fs.StringVar(&f.at, "at", "", "run no earlier than this RFC 3339 time")
	fs.Int64Var(&f.parent, "parent", 0, "parent task id")
	if err := fs.Parse(args); err != nil {
		return f, errUsage
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "priority" {
			f.hasPrio = true
		}
	})

	if f.module == "" || f.function == "" {
		return f, errors.Join(errUsage, errors.New("-module and -func are required"))
	}
	if f.params != "" && !json.Valid([]byte(f.params)) {
		return f, errors.Join(errUsage, errors.New("-params must be valid JSON"))
	}
	if f.delay != 0 && f.at != "" {
		return f, errors.Join(errUsage, errors.New("-delay and -at are mutually exclusive"))
	}
	return f, nil
}

func (f enqueueFlags) options() ([]queue.EnqueueOption, error) {
	var opts []queue.EnqueueOption
	if f.hasPrio {
		opts = append(opts, queue.WithPriority(queue.Priority(f.priority)))
	}
	if f.retries >= 0 {
		opts = append(opts, queue.WithMaxRetries(f.retries))
	}
	if f.delay > 0 {
		opts = append(opts, queue.WithDelay(f.delay))
	}
	if f.at != "" {
		at, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return nil, errors.Join(errUsage, fmt.Errorf("-at: %w", err))
		}
		opts = append(opts, queue.WithScheduledAt(at))
	}
	if f.parent > 0 {
		opts = append(opts, queue.WithParent(f.parent))
	}
	return opts, nil
}

func (f enqueueFlags) payload() any {
	if f.params == "" {
		return nil
	}
	return json.RawMessage(f.params)
}

func runEnqueue(ctx context.Context, args []string, stdout io.Writer) error {
	f, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}
	opts, err := f.options()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}
	n, err := a.notifier(client)
	if err != nil {
		return err
	}

	s, err := a.scheduler(queue.WithNotifier(n))
	if err != nil {
		return err
	}

	id, err := s.Enqueue(ctx, f.module, f.function, f.payload(), opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, id)
	return nil
}
