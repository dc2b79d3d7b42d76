package push

import "errors"

var (
	// ErrInvalidConfig is returned when a provider is constructed with
	// missing credentials.
	ErrInvalidConfig = errors.New("push: invalid config")

	// ErrSendFailed wraps provider transport and API failures.
	ErrSendFailed = errors.New("push: failed to send")

	// ErrNoDeviceTokens is returned when the recipient has no active
	// device tokens. The send fails fast before any provider call; it is
	// a validation failure and is never retried.
	ErrNoDeviceTokens = errors.New("push: recipient has no active device tokens")

	// ErrTokenNotFound is returned when unregistering an unknown token.
	ErrTokenNotFound = errors.New("push: device token not found")

	// ErrNoBody is returned for messages without title or body.
	ErrNoBody = errors.New("push: title or body is required")
)
