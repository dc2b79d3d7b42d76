package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgSubscriptionStore implements SubscriptionStore on PostgreSQL.
type PgSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPgSubscriptionStore creates a store backed by the given pool.
func NewPgSubscriptionStore(pool *pgxpool.Pool) *PgSubscriptionStore {
	return &PgSubscriptionStore{pool: pool}
}

// Create implements SubscriptionStore.
func (s *PgSubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	if err := validateInputs(sub.URL, []byte("{}")); err != nil {
		return err
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Method == "" {
		sub.Method = http.MethodPost
	}
	now := time.Now()
	sub.Active = true
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions (id, tenant_id, url, method, secret, events, headers, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.TenantID, sub.URL, sub.Method, sub.Secret, sub.Events, sub.Headers, sub.Active, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook subscription: %w", err)
	}
	return nil
}

// ActiveForTenant implements SubscriptionStore.
func (s *PgSubscriptionStore) ActiveForTenant(ctx context.Context, tenantID string) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, url, method, secret, events, headers, active, created_at, updated_at
		FROM webhook_subscriptions
		WHERE tenant_id = $1 AND active
		ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.URL, &sub.Method, &sub.Secret, &sub.Events, &sub.Headers, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read webhook subscriptions: %w", err)
	}
	return subs, nil
}

// Deactivate implements SubscriptionStore.
func (s *PgSubscriptionStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_subscriptions SET active = FALSE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate webhook subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
