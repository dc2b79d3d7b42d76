package queue

import "time"

// EnqueuerOption is a functional option for configuring an Enqueuer.
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue string
}

// WithDefaultQueue sets the default queue name.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// EnqueueOption is a functional option for the Enqueue method.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	priority    Priority
	maxAttempts int8
	delay       time.Duration
	name        string
}

// WithQueue sets the queue for the job.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithPriority sets the priority for the job.
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = priority
	}
}

// WithMaxAttempts sets the maximum number of processing attempts (1-10).
// Capped at 10 to prevent endless retry loops on persistent failures.
func WithMaxAttempts(maxAttempts int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if maxAttempts >= 1 && maxAttempts <= 10 {
			o.maxAttempts = maxAttempts
		}
	}
}

// WithDelay defers the job's eligible time by the given duration.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithJobName sets a custom job name instead of the payload type name.
func WithJobName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.name = name
		}
	}
}
