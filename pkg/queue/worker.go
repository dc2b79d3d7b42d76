package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/logger"
)

// WorkerStorage defines the storage operations the processing loop needs.
type WorkerStorage interface {
	// ClaimJob atomically claims the earliest-ranked eligible job from
	// the given queues and leases it for the lock duration. A claim is
	// a conditional remove: two concurrent workers can never observe
	// the same job.
	ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error)

	// CompleteJob discards a successfully processed job.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// RetryJob records the failure, increments attempts and reschedules
	// the job at runAt.
	RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, runAt time.Time) error

	// MoveToDeadLetter records the final failure and moves the job to
	// the dead-letter list, dropping it from the active queue. The
	// attempts count is recorded as given; a job dead-lettered before
	// any handler ran carries zero attempts.
	MoveToDeadLetter(ctx context.Context, jobID uuid.UUID, errMsg string, attempts int8) error
}

// DeadLetterHook is invoked whenever a job is dead-lettered. The
// dead-letter list is the fatal-error surface: anything arriving there
// must be reported, not silently lost.
type DeadLetterHook func(job Job, err error)

// Worker processes jobs from the queue on a fixed tick.
type Worker struct {
	storage  WorkerStorage
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // protects stopping state and WaitGroup operations

	pullInterval time.Duration
	lease        time.Duration
	backoffBase  time.Duration
	onDeadLetter DeadLetterHook
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new job worker.
func NewWorker(storage WorkerStorage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &workerOptions{
		queues:        []string{DefaultQueueName},
		pullInterval:  time.Second,
		lease:         5 * time.Minute,
		backoffBase:   30 * time.Second,
		maxConcurrent: 1,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		storage:      storage,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrent),
		pullInterval: options.pullInterval,
		lease:        options.lease,
		backoffBase:  options.backoffBase,
		onDeadLetter: options.onDeadLetter,
		logger:       options.logger,
	}, nil
}

// RegisterHandler registers a single job handler.
func (w *Worker) RegisterHandler(handler Handler) {
	if handler == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.Name()] = handler
}

// RegisterHandlers registers multiple job handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	for _, h := range handlers {
		w.RegisterHandler(h)
	}
}

// Start begins processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("queue worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("queue worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run returns a function suitable for errgroup-style supervision.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

// run is the main processing loop: each tick spawns up to maxConcurrent
// processing attempts.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.spawn()
		}
	}
}

// spawn starts up to maxConcurrent claim attempts for this tick,
// bounded by free semaphore slots.
func (w *Worker) spawn() {
	for range cap(w.sem) {
		select {
		case w.sem <- struct{}{}:
			w.stopMu.Lock()
			if w.stopping.Load() {
				w.stopMu.Unlock()
				<-w.sem
				return
			}
			w.wg.Add(1)
			w.stopMu.Unlock()

			go func() {
				defer w.wg.Done()
				defer func() { <-w.sem }()

				claimed, err := w.pullAndProcess()
				if err != nil && !errors.Is(err, ErrHandlerNotFound) {
					w.logger.Error("failed to process job",
						slog.String("worker_id", w.workerID.String()),
						logger.Error(err))
				}
				_ = claimed
			}()
		default:
			// All slots busy, skip this tick.
			return
		}
	}
}

// pullAndProcess claims one job and processes it. An empty queue is not
// an error.
func (w *Worker) pullAndProcess() (bool, error) {
	job, err := w.storage.ClaimJob(w.ctx, w.workerID, w.queues, w.lease)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	return true, w.processJob(job)
}

// processJob executes a job with its handler. Handler panics and errors
// are contained per job: one job's failure never blocks others.
func (w *Worker) processJob(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("job handler panicked",
				slog.String("worker_id", w.workerID.String()),
				logger.JobID(job.ID),
				slog.String("job_name", job.Name),
				slog.Any("panic", r))
			_ = w.handleFailure(job, retErr)
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(job)
	}

	// The handler context is bounded by the lease but detached from the
	// worker lifecycle so graceful shutdown lets in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lease)
	defer cancel()

	err := handler.Handle(ctx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("job failed",
			slog.String("worker_id", w.workerID.String()),
			logger.JobID(job.ID),
			slog.String("job_name", job.Name),
			logger.Attempts(int(job.Attempts)),
			slog.Int("max_attempts", int(job.MaxAttempts)),
			logger.Duration(duration),
			logger.Error(err))
		return w.handleFailure(job, err)
	}

	if cerr := w.storage.CompleteJob(w.ctx, job.ID); cerr != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, cerr)
	}

	w.logger.Info("job completed",
		slog.String("worker_id", w.workerID.String()),
		logger.JobID(job.ID),
		slog.String("job_name", job.Name),
		logger.Queue(job.Queue),
		logger.Duration(duration))

	return nil
}

// handleMissingHandler dead-letters jobs that have no registered
// handler: they would fail every retry until a handler is deployed, so
// they go straight to the dead-letter list for explicit requeueing.
func (w *Worker) handleMissingHandler(job *Job) error {
	errMsg := "no handler registered for job: " + job.Name
	w.logger.Error(errMsg,
		slog.String("worker_id", w.workerID.String()),
		logger.JobID(job.ID))

	if err := w.storage.MoveToDeadLetter(w.ctx, job.ID, errMsg, job.Attempts); err != nil {
		return fmt.Errorf("failed to dead-letter job %s: %w", job.ID, err)
	}
	w.reportDeadLetter(job, ErrHandlerNotFound)

	return ErrHandlerNotFound
}

// handleFailure applies the retry policy: attempts grows by exactly one
// per failed cycle; while attempts < maxAttempts the job is rescheduled
// with exponential backoff (base * 2^attempts), otherwise it is moved
// to the dead-letter list and reported.
func (w *Worker) handleFailure(job *Job, execErr error) error {
	attempts := job.Attempts + 1

	if attempts < job.MaxAttempts {
		runAt := time.Now().Add(Backoff(w.backoffBase, attempts))
		if err := w.storage.RetryJob(w.ctx, job.ID, execErr.Error(), runAt); err != nil {
			return fmt.Errorf("failed to reschedule job %s: %w", job.ID, err)
		}
		return nil
	}

	if err := w.storage.MoveToDeadLetter(w.ctx, job.ID, execErr.Error(), attempts); err != nil {
		return fmt.Errorf("failed to dead-letter job %s after max attempts: %w", job.ID, err)
	}

	w.logger.Warn("job moved to dead-letter list",
		slog.String("worker_id", w.workerID.String()),
		logger.JobID(job.ID),
		slog.String("job_name", job.Name),
		logger.Attempts(int(attempts)))
	w.reportDeadLetter(job, execErr)

	return nil
}

func (w *Worker) reportDeadLetter(job *Job, err error) {
	if w.onDeadLetter != nil {
		w.onDeadLetter(*job, err)
	}
}
