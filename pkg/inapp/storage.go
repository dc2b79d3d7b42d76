package inapp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRecordNotFound is returned when no record matches the lookup.
	ErrRecordNotFound = errors.New("in-app notification not found")

	// ErrUserIDRequired is returned when a record has no user id.
	ErrUserIDRequired = errors.New("user id is required")
)

// ListOptions filters and paginates record listings.
type ListOptions struct {
	Limit      int
	Offset     int
	OnlyUnread bool
	Since      *time.Time
}

// Storage persists in-app notification records.
type Storage interface {
	// Create stores a new record.
	Create(ctx context.Context, rec *Record) error

	// List returns a user's records, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]Record, error)

	// MarkRead stamps the given records read. Already-read records are
	// left untouched; unknown ids are ignored.
	MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error

	// CountUnread returns the user's unread record count.
	CountUnread(ctx context.Context, userID string) (int, error)
}
