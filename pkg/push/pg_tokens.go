package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTokenStore implements TokenStore on PostgreSQL.
type PgTokenStore struct {
	pool *pgxpool.Pool
}

// NewPgTokenStore creates a PostgreSQL-backed token store.
func NewPgTokenStore(pool *pgxpool.Pool) (*PgTokenStore, error) {
	if pool == nil {
		return nil, errors.New("pgx pool cannot be nil")
	}
	return &PgTokenStore{pool: pool}, nil
}

// Register implements TokenStore.
func (s *PgTokenStore) Register(ctx context.Context, userID, token string, platform Platform, deviceInfo map[string]string) (Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx, `
		INSERT INTO push_tokens (id, user_id, token, platform, device_info, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, now(), now())
		ON CONFLICT (user_id, token) DO UPDATE SET
			platform = EXCLUDED.platform,
			device_info = EXCLUDED.device_info,
			active = TRUE,
			updated_at = now()
		RETURNING id, user_id, token, platform, device_info, active, created_at, updated_at`,
		uuid.New(), userID, token, string(platform), deviceInfo,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.DeviceInfo, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Token{}, fmt.Errorf("failed to register push token: %w", err)
	}
	return t, nil
}

// Unregister implements TokenStore.
func (s *PgTokenStore) Unregister(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to unregister push token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ActiveTokens implements TokenStore.
func (s *PgTokenStore) ActiveTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token, platform, device_info, active, created_at, updated_at
		FROM push_tokens WHERE user_id = $1 AND active ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.DeviceInfo, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Deactivate implements TokenStore.
func (s *PgTokenStore) Deactivate(ctx context.Context, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE push_tokens SET active = FALSE, updated_at = now()
		WHERE token = ANY($1)`, tokens); err != nil {
		return fmt.Errorf("failed to deactivate push tokens: %w", err)
	}
	return nil
}
