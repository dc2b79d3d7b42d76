package inapp

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in memory for tests and
// single-process deployments.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string][]*Record // userID -> records
}

// NewMemoryStorage creates an empty in-memory record store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string][]*Record)}
}

// Create implements Storage.
func (s *MemoryStorage) Create(ctx context.Context, rec *Record) error {
	if rec.UserID == "" {
		return ErrUserIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	stored := *rec
	s.records[rec.UserID] = append(s.records[rec.UserID], &stored)
	return nil
}

// List implements Storage.
func (s *MemoryStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records[userID] {
		if opts.OnlyUnread && rec.Read() {
			continue
		}
		if opts.Since != nil && rec.CreatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, *rec)
	}

	slices.SortFunc(out, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// MarkRead implements Storage.
func (s *MemoryStorage) MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	now := time.Now()
	for _, rec := range s.records[userID] {
		if _, ok := wanted[rec.ID]; ok && !rec.Read() {
			at := now
			rec.ReadAt = &at
		}
	}
	return nil
}

// CountUnread implements Storage.
func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, rec := range s.records[userID] {
		if !rec.Read() {
			count++
		}
	}
	return count, nil
}
