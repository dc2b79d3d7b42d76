package push

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTokenStore implements TokenStore in memory for tests and
// single-process deployments.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token // keyed by token value
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*Token)}
}

// Register implements TokenStore.
func (s *MemoryTokenStore) Register(ctx context.Context, userID, token string, platform Platform, deviceInfo map[string]string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.tokens[token]; ok && existing.UserID == userID {
		existing.Active = true
		existing.Platform = platform
		existing.DeviceInfo = deviceInfo
		existing.UpdatedAt = now
		return *existing, nil
	}

	t := &Token{
		ID:         uuid.New(),
		UserID:     userID,
		Token:      token,
		Platform:   platform,
		DeviceInfo: deviceInfo,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.tokens[token] = t
	return *t, nil
}

// Unregister implements TokenStore.
func (s *MemoryTokenStore) Unregister(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token]; !ok {
		return ErrTokenNotFound
	}
	delete(s.tokens, token)
	return nil
}

// ActiveTokens implements TokenStore.
func (s *MemoryTokenStore) ActiveTokens(ctx context.Context, userID string) ([]Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Token
	for _, t := range s.tokens {
		if t.UserID == userID && t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Deactivate implements TokenStore. Unknown tokens are ignored: the
// provider may report a token that was unregistered meanwhile.
func (s *MemoryTokenStore) Deactivate(ctx context.Context, tokens ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, token := range tokens {
		if t, ok := s.tokens[token]; ok {
			t.Active = false
			t.UpdatedAt = now
		}
	}
	return nil
}
