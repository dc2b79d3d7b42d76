package push

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Platform identifies the push transport a token belongs to.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web" // token is a serialized webpush subscription
)

// Token is a registered device push token. Tokens are deactivated, not
// deleted, when a provider reports them invalid: the history matters
// when debugging delivery gaps.
type Token struct {
	ID         uuid.UUID         `json:"id"`
	UserID     string            `json:"user_id"`
	Token      string            `json:"token"`
	Platform   Platform          `json:"platform"`
	DeviceInfo map[string]string `json:"device_info,omitempty"` // model, os version, app version
	Active     bool              `json:"active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// TokenStore persists device tokens.
type TokenStore interface {
	// Register stores a token for a user. Re-registering an existing
	// (user, token) pair reactivates it and refreshes its device info.
	Register(ctx context.Context, userID, token string, platform Platform, deviceInfo map[string]string) (Token, error)

	// Unregister removes a token, typically on logout.
	Unregister(ctx context.Context, token string) error

	// ActiveTokens returns the user's active tokens.
	ActiveTokens(ctx context.Context, userID string) ([]Token, error)

	// Deactivate marks tokens invalid after a provider rejects them.
	Deactivate(ctx context.Context, tokens ...string) error
}
