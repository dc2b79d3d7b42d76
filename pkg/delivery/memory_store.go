package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/notify/pkg/notification"
)

type logKey struct {
	notificationID uuid.UUID
	channel        notification.Channel
	recipient      string
}

// MemoryStore implements Store in memory for tests and single-process
// deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[logKey]*Log
}

// NewMemoryStore creates an empty in-memory delivery log store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[logKey]*Log)}
}

// Record implements Store.
func (s *MemoryStore) Record(ctx context.Context, log *Log) error {
	if log == nil {
		return ErrLogNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := logKey{log.NotificationID, log.Channel, log.Recipient}
	now := time.Now()

	existing, ok := s.logs[key]
	if !ok {
		entry := *log
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.CreatedAt = now
		entry.UpdatedAt = now
		s.logs[key] = &entry
		log.ID = entry.ID
		return nil
	}

	existing.Provider = log.Provider
	existing.MessageID = log.MessageID
	existing.Response = log.Response
	existing.Error = log.Error
	existing.applyStatus(log.Status, now)
	existing.UpdatedAt = now
	log.ID = existing.ID

	return nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(ctx context.Context, provider, messageID string, status notification.Status, raw []byte) (*Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, log := range s.logs {
		if log.Provider == provider && log.MessageID == messageID && messageID != "" {
			if len(raw) > 0 {
				log.Response = raw
			}
			log.applyStatus(status, time.Now())
			out := *log
			return &out, nil
		}
	}
	return nil, ErrLogNotFound
}

// UpdateStatusByKey implements Store.
func (s *MemoryStore) UpdateStatusByKey(ctx context.Context, notificationID uuid.UUID, channel notification.Channel, recipient string, status notification.Status, raw []byte) ([]Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []Log
	for _, log := range s.logs {
		if log.NotificationID != notificationID || log.Recipient != recipient {
			continue
		}
		if channel != "" && log.Channel != channel {
			continue
		}
		if len(raw) > 0 {
			log.Response = raw
		}
		log.applyStatus(status, now)
		out = append(out, *log)
	}
	if len(out) == 0 {
		return nil, ErrLogNotFound
	}
	return out, nil
}

// ListByNotification implements Store.
func (s *MemoryStore) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Log
	for _, log := range s.logs {
		if log.NotificationID == notificationID {
			out = append(out, *log)
		}
	}
	return out, nil
}

// FindByMessageID implements Store.
func (s *MemoryStore) FindByMessageID(ctx context.Context, provider, messageID string) (*Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, log := range s.logs {
		if log.Provider == provider && log.MessageID == messageID && messageID != "" {
			out := *log
			return &out, nil
		}
	}
	return nil, ErrLogNotFound
}
