package queue

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("queue storage cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range.
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrNoJobToClaim signals an empty poll; it is normal, not a failure.
	ErrNoJobToClaim = errors.New("no claimable job")

	// ErrJobNotFound is returned for operations on unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotProcessing is returned when completing or failing a job that
	// is not currently claimed.
	ErrNotProcessing = errors.New("job is not in processing state")

	// ErrHandlerNotFound is returned when no handler is registered for a
	// claimed job's name.
	ErrHandlerNotFound = errors.New("no handler registered for job")

	// ErrNoHandlers is returned when a worker starts with nothing registered.
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrDeadLetterNotFound is returned when requeueing an unknown dead letter.
	ErrDeadLetterNotFound = errors.New("dead letter not found")
)
