package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnqueuerStorage defines the interface for job creation.
type EnqueuerStorage interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer adds jobs to the queue.
type Enqueuer struct {
	storage      EnqueuerStorage
	defaultQueue string
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(storage EnqueuerStorage, opts ...EnqueuerOption) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &enqueuerOptions{defaultQueue: DefaultQueueName}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		storage:      storage,
		defaultQueue: options.defaultQueue,
	}, nil
}

// Enqueue stores a new job and returns its id. The payload is marshaled
// to JSON; its qualified type name resolves the worker-side handler.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:       e.defaultQueue,
		priority:    PriorityDefault,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(options)
	}

	if !options.priority.Valid() {
		return uuid.Nil, ErrInvalidPriority
	}

	job, err := buildJob(payload, options)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.storage.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job %q in queue %q: %w", job.Name, job.Queue, err)
	}

	return job.ID, nil
}

func buildJob(payload any, options *enqueueOptions) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	name := options.name
	if name == "" {
		name = qualifiedStructName(payload)
	}

	now := time.Now()
	runAt := now
	if options.delay > 0 {
		runAt = now.Add(options.delay)
	}

	return &Job{
		ID:          uuid.New(),
		Queue:       options.queue,
		Name:        name,
		Payload:     payloadBytes,
		Status:      StatusPending,
		Priority:    options.priority,
		Attempts:    0,
		MaxAttempts: options.maxAttempts,
		RunAt:       runAt,
		CreatedAt:   now,
	}, nil
}

func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
