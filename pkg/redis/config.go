package redis

import "time"

// Config configures the Redis client used for enqueue notifications.
// An empty ConnectionURL disables notifications.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                              // ConnectionURL is the URL of the server, e.g. "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`    // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`   // RetryInterval is the pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"` // ConnectTimeout bounds the whole connect sequence.
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
