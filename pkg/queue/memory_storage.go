package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the queue storage interfaces for testing and
// single-process deployments.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	dlq  []*DeadLetter

	byStatus map[Status][]uuid.UUID

	leaseTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// NewMemoryStorage creates a new in-memory storage implementation.
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		jobs:     make(map[uuid.UUID]*Job),
		byStatus: make(map[Status][]uuid.UUID),
		done:     make(chan struct{}),
	}

	// Recover jobs whose worker died mid-lease.
	ms.leaseTicker = time.NewTicker(time.Second)
	go ms.leaseExpiryLoop()

	return ms
}

// Close stops the background lease reaper.
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.leaseTicker.Stop()
	})
	return nil
}

// CreateJob implements EnqueuerStorage.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy
	ms.byStatus[job.Status] = append(ms.byStatus[job.Status], job.ID)

	return nil
}

// ClaimJob implements WorkerStorage. Selection and removal happen under
// one lock, so the claim is atomic: no two workers can observe the same
// earliest job.
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job

	for _, jobID := range ms.byStatus[StatusPending] {
		job := ms.jobs[jobID]

		if !slices.Contains(queues, job.Queue) {
			continue
		}
		// A job is only eligible once its scheduled time has passed.
		if job.RunAt.After(now) {
			continue
		}
		if best == nil || job.Rank() < best.Rank() {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	lockUntil := now.Add(lease)
	best.Status = StatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	ms.removeFromStatusIndex(best.ID, StatusPending)
	ms.byStatus[StatusProcessing] = append(ms.byStatus[StatusProcessing], best.ID)

	jobCopy := *best
	return &jobCopy, nil
}

// CompleteJob implements WorkerStorage: successful jobs are discarded.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != StatusProcessing {
		return fmt.Errorf("%w: %s", ErrNotProcessing, jobID)
	}

	ms.removeFromStatusIndex(jobID, StatusProcessing)
	delete(ms.jobs, jobID)

	return nil
}

// RetryJob implements WorkerStorage: records the failure, increments
// attempts and makes the job claimable again at runAt.
func (ms *MemoryStorage) RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, runAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != StatusProcessing {
		return fmt.Errorf("%w: %s", ErrNotProcessing, jobID)
	}

	job.Attempts++
	job.LastError = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil
	job.Status = StatusPending
	job.RunAt = runAt

	ms.removeFromStatusIndex(jobID, StatusProcessing)
	ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], jobID)

	return nil
}

// MoveToDeadLetter implements WorkerStorage: the job is recorded once on
// the dead-letter list and dropped from the active queue.
func (ms *MemoryStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID, errMsg string, attempts int8) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	ms.dlq = append(ms.dlq, &DeadLetter{
		ID:         uuid.New(),
		JobID:      job.ID,
		Queue:      job.Queue,
		Name:       job.Name,
		Payload:    job.Payload,
		Priority:   job.Priority,
		Error:      errMsg,
		Attempts:   attempts,
		FailedAt:   time.Now(),
		EnqueuedAt: job.CreatedAt,
	})

	ms.removeFromStatusIndex(jobID, job.Status)
	delete(ms.jobs, jobID)

	return nil
}

// DeadLetters returns dead letters, newest first, optionally filtered by
// queue. A zero limit returns everything.
func (ms *MemoryStorage) DeadLetters(ctx context.Context, queue string, limit int) ([]DeadLetter, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]DeadLetter, 0, len(ms.dlq))
	for i := len(ms.dlq) - 1; i >= 0; i-- {
		dl := ms.dlq[i]
		if queue != "" && dl.Queue != queue {
			continue
		}
		out = append(out, *dl)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// RequeueDeadLetter explicitly puts a dead letter back on its queue as a
// fresh job with zero attempts. This is the only path out of the
// dead-letter list.
func (ms *MemoryStorage) RequeueDeadLetter(ctx context.Context, deadLetterID uuid.UUID) (uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	idx := slices.IndexFunc(ms.dlq, func(dl *DeadLetter) bool { return dl.ID == deadLetterID })
	if idx < 0 {
		return uuid.Nil, ErrDeadLetterNotFound
	}
	dl := ms.dlq[idx]
	ms.dlq = slices.Delete(ms.dlq, idx, idx+1)

	now := time.Now()
	job := &Job{
		ID:          uuid.New(),
		Queue:       dl.Queue,
		Name:        dl.Name,
		Payload:     dl.Payload,
		Status:      StatusPending,
		Priority:    dl.Priority,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		RunAt:       now,
		CreatedAt:   now,
	}
	ms.jobs[job.ID] = job
	ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], job.ID)

	return job.ID, nil
}

func (ms *MemoryStorage) removeFromStatusIndex(jobID uuid.UUID, status Status) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == jobID
	})
}

// leaseExpiryLoop recovers jobs claimed by workers that died mid-lease:
// expired leases go back to pending at their current attempt count.
func (ms *MemoryStorage) leaseExpiryLoop() {
	for {
		select {
		case <-ms.leaseTicker.C:
			ms.expireLeases()
		case <-ms.done:
			return
		}
	}
}

func (ms *MemoryStorage) expireLeases() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Collect first: removeFromStatusIndex rewrites the slice being
	// ranged over, which would shift entries under the loop.
	now := time.Now()
	var expired []uuid.UUID
	for _, jobID := range ms.byStatus[StatusProcessing] {
		job := ms.jobs[jobID]
		if job != nil && job.LockedUntil != nil && job.LockedUntil.Before(now) {
			expired = append(expired, jobID)
		}
	}
	for _, jobID := range expired {
		job := ms.jobs[jobID]
		job.Status = StatusPending
		job.LockedUntil = nil
		job.LockedBy = nil

		ms.removeFromStatusIndex(jobID, StatusProcessing)
		ms.byStatus[StatusPending] = append(ms.byStatus[StatusPending], jobID)
	}
}
