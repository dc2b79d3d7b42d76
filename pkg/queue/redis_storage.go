package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the queue storage interfaces on Redis sorted
// sets. Jobs are ranked by eligibleAt minus the priority offset, so the
// earliest-ranked member of a queue's pending set is the next candidate.
// Claiming is a single Lua script: the candidate is checked for
// eligibility and moved into the processing set atomically, which
// closes the peek-then-remove race between concurrent workers.
type RedisStorage struct {
	client *redis.Client
	prefix string

	done      chan struct{}
	closeOnce func()
}

// claimScript picks the earliest-ranked eligible job and leases it.
// A job's rank may precede its eligible time by up to the priority
// offset (100ms), so the script scans a small batch of earliest-ranked
// candidates and claims the first whose run_at_ms has passed. Jobs are
// never returned before their scheduled-eligible time.
var claimScript = redis.NewScript(`
local candidates = redis.call('ZRANGE', KEYS[1], 0, 9)
local now = tonumber(ARGV[1])
local leaseUntil = tonumber(ARGV[2])
local jobPrefix = ARGV[3]
for i, id in ipairs(candidates) do
	local runAt = tonumber(redis.call('HGET', jobPrefix .. id, 'run_at_ms'))
	if runAt and runAt <= now then
		redis.call('ZREM', KEYS[1], id)
		redis.call('ZADD', KEYS[2], leaseUntil, id)
		return id
	end
end
return false
`)

// NewRedisStorage creates a Redis-backed queue storage. The prefix
// namespaces every key; pass the service name.
func NewRedisStorage(client *redis.Client, prefix string) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrStorageNil
	}
	if prefix == "" {
		prefix = "notify:queue"
	}

	rs := &RedisStorage{
		client: client,
		prefix: prefix,
		done:   make(chan struct{}),
	}

	// Recover jobs whose worker died mid-lease.
	ticker := time.NewTicker(time.Second)
	go rs.leaseExpiryLoop(ticker)
	rs.closeOnce = func() {
		ticker.Stop()
		close(rs.done)
	}

	return rs, nil
}

// Close stops the background lease reaper. The Redis client itself is
// owned by the caller.
func (rs *RedisStorage) Close() error {
	if rs.closeOnce != nil {
		rs.closeOnce()
		rs.closeOnce = nil
	}
	return nil
}

func (rs *RedisStorage) pendingKey(queue string) string    { return rs.prefix + ":" + queue + ":pending" }
func (rs *RedisStorage) processingKey(queue string) string { return rs.prefix + ":" + queue + ":processing" }
func (rs *RedisStorage) jobKey(id string) string           { return rs.prefix + ":job:" + id }
func (rs *RedisStorage) queuesKey() string                 { return rs.prefix + ":queues" }
func (rs *RedisStorage) dlqDataKey() string                { return rs.prefix + ":dlq:data" }
func (rs *RedisStorage) dlqIndexKey() string               { return rs.prefix + ":dlq:index" }

// CreateJob implements EnqueuerStorage.
func (rs *RedisStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	id := job.ID.String()
	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, rs.jobKey(id),
		"data", data,
		"run_at_ms", job.RunAt.UnixMilli(),
		"queue", job.Queue,
	)
	pipe.ZAdd(ctx, rs.pendingKey(job.Queue), redis.Z{Score: float64(job.Rank()), Member: id})
	pipe.SAdd(ctx, rs.queuesKey(), job.Queue)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimJob implements WorkerStorage.
func (rs *RedisStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error) {
	now := time.Now()

	for _, queue := range queues {
		res, err := claimScript.Run(ctx, rs.client,
			[]string{rs.pendingKey(queue), rs.processingKey(queue)},
			now.UnixMilli(), now.Add(lease).UnixMilli(), rs.prefix+":job:",
		).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claim script failed for queue %q: %w", queue, err)
		}

		id, ok := res.(string)
		if !ok || id == "" {
			continue
		}

		job, err := rs.loadJob(ctx, id)
		if err != nil {
			return nil, err
		}

		lockUntil := now.Add(lease)
		job.Status = StatusProcessing
		job.LockedUntil = &lockUntil
		job.LockedBy = &workerID
		if err := rs.storeJob(ctx, job); err != nil {
			return nil, err
		}

		return job, nil
	}

	return nil, ErrNoJobToClaim
}

// CompleteJob implements WorkerStorage: successful jobs are discarded.
func (rs *RedisStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := rs.loadJob(ctx, jobID.String())
	if err != nil {
		return err
	}

	id := jobID.String()
	pipe := rs.client.TxPipeline()
	pipe.ZRem(ctx, rs.processingKey(job.Queue), id)
	pipe.Del(ctx, rs.jobKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

// RetryJob implements WorkerStorage.
func (rs *RedisStorage) RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, runAt time.Time) error {
	job, err := rs.loadJob(ctx, jobID.String())
	if err != nil {
		return err
	}

	job.Attempts++
	job.LastError = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil
	job.Status = StatusPending
	job.RunAt = runAt

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", jobID, err)
	}

	id := jobID.String()
	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, rs.jobKey(id), "data", data, "run_at_ms", runAt.UnixMilli())
	pipe.ZRem(ctx, rs.processingKey(job.Queue), id)
	pipe.ZAdd(ctx, rs.pendingKey(job.Queue), redis.Z{Score: float64(job.Rank()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, err)
	}
	return nil
}

// MoveToDeadLetter implements WorkerStorage.
func (rs *RedisStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID, errMsg string, attempts int8) error {
	job, err := rs.loadJob(ctx, jobID.String())
	if err != nil {
		return err
	}

	now := time.Now()
	dl := DeadLetter{
		ID:         uuid.New(),
		JobID:      job.ID,
		Queue:      job.Queue,
		Name:       job.Name,
		Payload:    job.Payload,
		Priority:   job.Priority,
		Error:      errMsg,
		Attempts:   attempts,
		FailedAt:   now,
		EnqueuedAt: job.CreatedAt,
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter for job %s: %w", jobID, err)
	}

	id := jobID.String()
	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, rs.dlqDataKey(), dl.ID.String(), data)
	pipe.ZAdd(ctx, rs.dlqIndexKey(), redis.Z{Score: float64(now.UnixMilli()), Member: dl.ID.String()})
	pipe.ZRem(ctx, rs.processingKey(job.Queue), id)
	pipe.ZRem(ctx, rs.pendingKey(job.Queue), id)
	pipe.Del(ctx, rs.jobKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to dead-letter job %s: %w", jobID, err)
	}
	return nil
}

// DeadLetters returns dead letters, newest first, optionally filtered by
// queue. A zero limit returns everything.
func (rs *RedisStorage) DeadLetters(ctx context.Context, queue string, limit int) ([]DeadLetter, error) {
	ids, err := rs.client.ZRevRange(ctx, rs.dlqIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	out := make([]DeadLetter, 0, len(ids))
	for _, id := range ids {
		raw, err := rs.client.HGet(ctx, rs.dlqDataKey(), id).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load dead letter %s: %w", id, err)
		}
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter %s: %w", id, err)
		}
		if queue != "" && dl.Queue != queue {
			continue
		}
		out = append(out, dl)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// RequeueDeadLetter explicitly puts a dead letter back on its queue as a
// fresh job with zero attempts.
func (rs *RedisStorage) RequeueDeadLetter(ctx context.Context, deadLetterID uuid.UUID) (uuid.UUID, error) {
	dlID := deadLetterID.String()
	raw, err := rs.client.HGet(ctx, rs.dlqDataKey(), dlID).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrDeadLetterNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load dead letter %s: %w", dlID, err)
	}

	var dl DeadLetter
	if err := json.Unmarshal([]byte(raw), &dl); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode dead letter %s: %w", dlID, err)
	}

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
	if err := rs.CreateJob(ctx, job); err != nil {
		return uuid.Nil, err
	}

	pipe := rs.client.TxPipeline()
	pipe.HDel(ctx, rs.dlqDataKey(), dlID)
	pipe.ZRem(ctx, rs.dlqIndexKey(), dlID)
	if _, err := pipe.Exec(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to remove dead letter %s: %w", dlID, err)
	}

	return job.ID, nil
}

func (rs *RedisStorage) loadJob(ctx context.Context, id string) (*Job, error) {
	raw, err := rs.client.HGet(ctx, rs.jobKey(id), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (rs *RedisStorage) storeJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	if err := rs.client.HSet(ctx, rs.jobKey(job.ID.String()), "data", data).Err(); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// leaseExpiryLoop moves jobs with expired leases back to pending so a
// crashed worker's claims are eventually retried.
func (rs *RedisStorage) leaseExpiryLoop(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			rs.expireLeases(ctx)
			cancel()
		case <-rs.done:
			return
		}
	}
}

func (rs *RedisStorage) expireLeases(ctx context.Context) {
	queues, err := rs.client.SMembers(ctx, rs.queuesKey()).Result()
	if err != nil {
		return
	}

	nowMs := strconv.FormatInt(time.Now().UnixMilli(), 10)
	for _, queue := range queues {
		ids, err := rs.client.ZRangeByScore(ctx, rs.processingKey(queue), &redis.ZRangeBy{
			Min: "-inf", Max: nowMs,
		}).Result()
		if err != nil {
			continue
		}
		for _, id := range ids {
			job, err := rs.loadJob(ctx, id)
			if err != nil {
				// Orphaned processing entry without job data.
				rs.client.ZRem(ctx, rs.processingKey(queue), id)
				continue
			}
			job.Status = StatusPending
			job.LockedUntil = nil
			job.LockedBy = nil
			if err := rs.storeJob(ctx, job); err != nil {
				continue
			}
			pipe := rs.client.TxPipeline()
			pipe.ZRem(ctx, rs.processingKey(queue), id)
			pipe.ZAdd(ctx, rs.pendingKey(queue), redis.Z{Score: float64(job.Rank()), Member: id})
			_, _ = pipe.Exec(ctx)
		}
	}
}
