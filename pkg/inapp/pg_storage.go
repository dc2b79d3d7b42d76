package inapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStorage implements Storage on PostgreSQL. Action buttons are
// derived from the type at read time, not persisted.
type PgStorage struct {
	pool *pgxpool.Pool
}

// NewPgStorage creates a PostgreSQL-backed record store.
func NewPgStorage(pool *pgxpool.Pool) *PgStorage {
	return &PgStorage{pool: pool}
}

// Create implements Storage.
func (s *PgStorage) Create(ctx context.Context, rec *Record) error {
	if rec.UserID == "" {
		return ErrUserIDRequired
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO inapp_notifications (id, user_id, notification_id, type, subject, body, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.NotificationID, rec.Type, rec.Subject, rec.Body, rec.Data, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store in-app notification: %w", err)
	}
	return nil
}

// List implements Storage.
func (s *PgStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, user_id, notification_id, type, subject, body, data, read_at, created_at
		FROM inapp_notifications
		WHERE user_id = $1`)
	args := []any{userID}

	if opts.OnlyUnread {
		sb.WriteString(" AND read_at IS NULL")
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-app notifications: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.NotificationID, &rec.Type,
			&rec.Subject, &rec.Body, &rec.Data, &rec.ReadAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan in-app notification: %w", err)
		}
		rec.Actions = ActionsFor(rec.Type)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read in-app notifications: %w", err)
	}
	return out, nil
}

// MarkRead implements Storage.
func (s *PgStorage) MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE inapp_notifications SET read_at = now()
		WHERE user_id = $1 AND id = ANY($2) AND read_at IS NULL`,
		userID, ids,
	)
	if err != nil {
		return fmt.Errorf("failed to mark in-app notifications read: %w", err)
	}
	return nil
}

// CountUnread implements Storage.
func (s *PgStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM inapp_notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread in-app notifications: %w", err)
	}
	return count, nil
}
