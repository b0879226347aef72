// Package redis connects to the Redis server that carries enqueue
// notifications between producers and idle workers.
//
// Connect retries the initial ping according to Config, and Healthcheck
// returns a probe suitable for readiness endpoints:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	notifier, err := queue.NewRedisNotifier(client)
//
// Configuration is read from REDIS_* environment variables. Leaving
// REDIS_URL empty disables notifications; workers then rely on polling alone.
package redis
