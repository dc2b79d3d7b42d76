package webhook

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscription is a tenant-registered webhook endpoint. An empty Events
// set matches every event type.
type Subscription struct {
	ID        uuid.UUID         `json:"id"`
	TenantID  string            `json:"tenant_id"`
	URL       string            `json:"url"`
	Method    string            `json:"method,omitempty"` // defaults to POST
	Secret    string            `json:"secret,omitempty"` // per-subscription signing secret
	Events    []string          `json:"events,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Matches reports whether the subscription wants the given event type.
func (s Subscription) Matches(event string) bool {
	return len(s.Events) == 0 || slices.Contains(s.Events, event)
}

// SubscriptionStore persists webhook subscriptions.
type SubscriptionStore interface {
	// Create stores a new subscription.
	Create(ctx context.Context, sub *Subscription) error

	// ActiveForTenant returns the tenant's active subscriptions.
	ActiveForTenant(ctx context.Context, tenantID string) ([]Subscription, error)

	// Deactivate disables a subscription without deleting it.
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// MemorySubscriptionStore implements SubscriptionStore in memory.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// NewMemorySubscriptionStore creates an empty in-memory store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[uuid.UUID]*Subscription)}
}

// Create implements SubscriptionStore.
func (s *MemorySubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	if err := validateInputs(sub.URL, []byte("{}")); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Method == "" {
		sub.Method = http.MethodPost
	}
	sub.Active = true
	sub.CreatedAt = now
	sub.UpdatedAt = now

	stored := *sub
	s.subs[sub.ID] = &stored
	return nil
}

// ActiveForTenant implements SubscriptionStore.
func (s *MemorySubscriptionStore) ActiveForTenant(ctx context.Context, tenantID string) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.TenantID == tenantID && sub.Active {
			out = append(out, *sub)
		}
	}
	slices.SortFunc(out, func(a, b Subscription) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// Deactivate implements SubscriptionStore.
func (s *MemorySubscriptionStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.Active = false
	sub.UpdatedAt = time.Now()
	return nil
}
