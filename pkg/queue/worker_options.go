package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues        []string
	pullInterval  time.Duration
	lease         time.Duration
	backoffBase   time.Duration
	maxConcurrent int
	onDeadLetter  DeadLetterHook
	logger        *slog.Logger
}

// WithQueues sets the queues to process.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets the tick interval between claim rounds.
func WithPullInterval(interval time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if interval > 0 {
			o.pullInterval = interval
		}
	}
}

// WithLease sets how long a claimed job stays invisible to other
// workers. It should exceed the longest expected handler run.
func WithLease(lease time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if lease > 0 {
			o.lease = lease
		}
	}
}

// WithBackoffBase sets the base delay for exponential retry backoff.
func WithBackoffBase(base time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if base > 0 {
			o.backoffBase = base
		}
	}
}

// WithMaxConcurrent sets the number of simultaneous processing attempts
// per tick.
func WithMaxConcurrent(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithDeadLetterHook registers a callback invoked for every
// dead-lettered job, typically wired to alerting.
func WithDeadLetterHook(hook DeadLetterHook) WorkerOption {
	return func(o *workerOptions) {
		o.onDeadLetter = hook
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// NewWorkerFromConfig builds a worker from env-driven configuration.
func NewWorkerFromConfig(storage WorkerStorage, cfg Config, opts ...WorkerOption) (*Worker, error) {
	base := []WorkerOption{
		WithPullInterval(cfg.PollInterval),
		WithLease(cfg.LeaseDuration),
		WithBackoffBase(cfg.BackoffBase),
		WithMaxConcurrent(cfg.MaxConcurrent),
	}
	return NewWorker(storage, append(base, opts...)...)
}
