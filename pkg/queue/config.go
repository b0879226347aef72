package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	Table              string        `env:"QUEUE_TABLE" envDefault:"tasks"`
	WorkerHost         string        `env:"QUEUE_WORKER_HOST"` // defaults to the hostname
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	TaskTimeout        time.Duration `env:"QUEUE_TASK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	CheckInterval      time.Duration `env:"QUEUE_CHECK_INTERVAL" envDefault:"30s"`
	DefaultMaxRetries  int           `env:"QUEUE_DEFAULT_MAX_RETRIES" envDefault:"3"`
	DefaultPriority    int           `env:"QUEUE_DEFAULT_PRIORITY" envDefault:"50"`
	NotifyChannel      string        `env:"QUEUE_NOTIFY_CHANNEL" envDefault:"taskq:enqueued"`
}
