package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified.
const DefaultQueueName = "default"

// DefaultMaxAttempts bounds retries when the caller does not override it.
const DefaultMaxAttempts int8 = 3

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
)

// Priority represents job priority (0-100, higher is more important).
// Priority shifts a job's rank earlier: rank = eligibleAt - priority,
// in milliseconds, so higher priority sorts first among eligible jobs.
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMin
)

// Valid checks if the priority is within valid range.
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Job is an opaque unit of deferred work. Mutated only by the queue's
// own processing loop once enqueued.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	Name        string     `json:"name"` // payload type, resolves the handler
	Payload     []byte     `json:"payload,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Attempts    int8       `json:"attempts"`
	MaxAttempts int8       `json:"max_attempts"`
	RunAt       time.Time  `json:"run_at"` // scheduled-eligible time
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Rank is the time-ordered sort key: eligibleAt minus the priority
// offset, in unix milliseconds. A job is claimable only once RunAt has
// passed; among claimable jobs the lowest rank goes first.
func (j *Job) Rank() int64 {
	return j.RunAt.UnixMilli() - int64(j.Priority)
}

// DeadLetter is a job that exhausted all retry attempts. Dead letters
// are never retried automatically; requeueing is a separate explicit
// operation.
type DeadLetter struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	Queue      string    `json:"queue"`
	Name       string    `json:"name"`
	Payload    []byte    `json:"payload,omitempty"`
	Priority   Priority  `json:"priority"`
	Error      string    `json:"error"`
	Attempts   int8      `json:"attempts"`
	FailedAt   time.Time `json:"failed_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Backoff returns the retry delay after the given number of failed
// attempts: base * 2^attempts.
func Backoff(base time.Duration, attempts int8) time.Duration {
	return base * time.Duration(int64(1)<<uint(attempts))
}
