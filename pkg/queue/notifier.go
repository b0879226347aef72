package queue

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Notifier is told about every enqueued task so idle workers can poll
// immediately instead of waiting for the next tick.
type Notifier interface {
	Notify(ctx context.Context, taskID int64) error
}

// ChanNotifier is an in-process Notifier. Notifications coalesce: while one
// is pending, further ones are dropped.
type ChanNotifier struct {
	ch chan struct{}
}

// NewChanNotifier creates an in-process notifier.
func NewChanNotifier() *ChanNotifier {
	return &ChanNotifier{ch: make(chan struct{}, 1)}
}

func (n *ChanNotifier) Notify(context.Context, int64) error {
	select {
	case n.ch <- struct{}{}:
	default:
	}
	return nil
}

// C is the wake-up channel to hand to WithWakeup.
func (n *ChanNotifier) C() <-chan struct{} {
	return n.ch
}

// RedisNotifier publishes task ids on a Redis channel and turns
// subscriptions into worker wake-up signals, across processes.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// RedisNotifierOption configures a RedisNotifier.
type RedisNotifierOption func(*RedisNotifier)

// WithChannel sets the pub/sub channel name.
func WithChannel(channel string) RedisNotifierOption {
	return func(n *RedisNotifier) {
		if channel != "" {
			n.channel = channel
		}
	}
}

// WithNotifierLogger sets the logger for subscription diagnostics.
func WithNotifierLogger(logger *slog.Logger) RedisNotifierOption {
	return func(n *RedisNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewRedisNotifier creates a notifier over client.
func NewRedisNotifier(client redis.UniversalClient, opts ...RedisNotifierOption) (*RedisNotifier, error) {
	if client == nil {
		return nil, ErrNotifierNil
	}
	n := &RedisNotifier{
		client:  client,
		channel: "taskq:enqueued",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify publishes the task id.
func (n *RedisNotifier) Notify(ctx context.Context, taskID int64) error {
	return n.client.Publish(ctx, n.channel, strconv.FormatInt(taskID, 10)).Err()
}

// Subscribe returns a wake-up channel fed by the Redis subscription. Signals
// coalesce like ChanNotifier. The subscription ends and the channel is
// closed when ctx is cancelled.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	sub := n.client.Subscribe(ctx, n.channel)
	// Wait for the subscription confirmation so no publish is missed after return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		defer func() {
			if err := sub.Close(); err != nil {
				n.logger.Warn("failed to close redis subscription", logger.Error(err))
			}
		}()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()
	return wake, nil
}
