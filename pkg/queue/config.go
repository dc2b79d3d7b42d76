package queue

import "time"

// Config holds the configuration for the job queue.
type Config struct {
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LeaseDuration   time.Duration `env:"QUEUE_LEASE_DURATION" envDefault:"5m"`
	BackoffBase     time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"30s"`
	MaxConcurrent   int           `env:"QUEUE_MAX_CONCURRENT" envDefault:"10"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}
