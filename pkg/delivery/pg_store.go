package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuskit/notify/pkg/notification"
)

// PgStore implements Store on PostgreSQL. Idempotency is enforced by
// the unique index on (notification_id, channel, recipient): Record is
// an upsert and status events only ever update in place.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PostgreSQL-backed delivery log store.
func NewPgStore(pool *pgxpool.Pool) (*PgStore, error) {
	if pool == nil {
		return nil, errors.New("pgx pool cannot be nil")
	}
	return &PgStore{pool: pool}, nil
}

const recordQuery = `
INSERT INTO delivery_logs (
	id, notification_id, channel, recipient, provider, message_id,
	status, response, error, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
ON CONFLICT (notification_id, channel, recipient) DO UPDATE SET
	provider   = EXCLUDED.provider,
	message_id = EXCLUDED.message_id,
	status     = EXCLUDED.status,
	response   = EXCLUDED.response,
	error      = EXCLUDED.error,
	updated_at = now()
RETURNING id`

// Record implements Store.
func (s *PgStore) Record(ctx context.Context, log *Log) error {
	if log == nil {
		return ErrLogNil
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	err := s.pool.QueryRow(ctx, recordQuery,
		log.ID, log.NotificationID, string(log.Channel), log.Recipient,
		log.Provider, log.MessageID, string(log.Status), log.Response, log.Error,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to record delivery log: %w", err)
	}
	return nil
}

const updateStatusQuery = `
UPDATE delivery_logs SET
	status       = $3,
	response     = COALESCE(NULLIF($4::bytea, ''::bytea), response),
	delivered_at = CASE WHEN $3 = $5 THEN $6 ELSE delivered_at END,
	failed_at    = CASE WHEN $3 IN ($7, $8, $9) THEN $6 ELSE failed_at END,
	updated_at   = $6
WHERE provider = $1 AND message_id = $2 AND message_id <> ''
	AND NOT (status IN ($5, $7, $8, $9) AND $3 = $10)
RETURNING ` + logColumns

// UpdateStatus implements Store. A SENT event never downgrades a log
// that already reached a terminal status.
func (s *PgStore) UpdateStatus(ctx context.Context, provider, messageID string, status notification.Status, raw []byte) (*Log, error) {
	now := time.Now()

	row := s.pool.QueryRow(ctx, updateStatusQuery,
		provider, messageID, string(status), raw,
		string(notification.StatusDelivered), now,
		string(notification.StatusBounced), string(notification.StatusFailed), string(notification.StatusRejected),
		string(notification.StatusSent),
	)
	log, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either unknown correlation or a no-op downgrade; disambiguate
		// so callers can treat the idempotent case as success.
		return s.FindByMessageID(ctx, provider, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update delivery status: %w", err)
	}
	return log, nil
}

const updateStatusByKeyQuery = `
UPDATE delivery_logs SET
	status       = $4,
	response     = COALESCE(NULLIF($5::bytea, ''::bytea), response),
	delivered_at = CASE WHEN $4 = $6 THEN $7 ELSE delivered_at END,
	failed_at    = CASE WHEN $4 IN ($8, $9, $10) THEN $7 ELSE failed_at END,
	updated_at   = $7
WHERE notification_id = $1 AND recipient = $2
	AND ($3 = '' OR channel = $3)
	AND NOT (status IN ($6, $8, $9, $10) AND $4 = $11)
RETURNING ` + logColumns

// UpdateStatusByKey implements Store. An empty channel matches every
// channel of the (notification, recipient) pair.
func (s *PgStore) UpdateStatusByKey(ctx context.Context, notificationID uuid.UUID, channel notification.Channel, recipient string, status notification.Status, raw []byte) ([]Log, error) {
	now := time.Now()

	rows, err := s.pool.Query(ctx, updateStatusByKeyQuery,
		notificationID, recipient, string(channel), string(status), raw,
		string(notification.StatusDelivered), now,
		string(notification.StatusBounced), string(notification.StatusFailed), string(notification.StatusRejected),
		string(notification.StatusSent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update delivery status: %w", err)
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to update delivery status: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrLogNotFound
	}
	return out, nil
}

const logColumns = `
	id, notification_id, channel, recipient, provider, message_id,
	status, response, error, delivered_at, failed_at, created_at, updated_at`

// ListByNotification implements Store.
func (s *PgStore) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Log, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+logColumns+` FROM delivery_logs WHERE notification_id = $1 ORDER BY created_at`,
		notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *log)
	}
	return out, rows.Err()
}

// FindByMessageID implements Store.
func (s *PgStore) FindByMessageID(ctx context.Context, provider, messageID string) (*Log, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM delivery_logs WHERE provider = $1 AND message_id = $2 AND message_id <> ''`,
		provider, messageID)
	log, err := scanLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery log: %w", err)
	}
	return log, nil
}

func scanLog(row pgx.Row) (*Log, error) {
	var (
		log             Log
		channel, status string
		response        []byte
	)
	err := row.Scan(
		&log.ID, &log.NotificationID, &channel, &log.Recipient,
		&log.Provider, &log.MessageID, &status, &response, &log.Error,
		&log.DeliveredAt, &log.FailedAt, &log.CreatedAt, &log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	log.Channel = notification.Channel(channel)
	log.Status = notification.Status(status)
	log.Response = response
	return &log, nil
}
