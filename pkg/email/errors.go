package email

import "errors"

var (
	// ErrInvalidConfig is returned when a provider is constructed with
	// missing or malformed credentials.
	ErrInvalidConfig = errors.New("email: invalid config")

	// ErrSendFailed wraps provider transport and API failures.
	ErrSendFailed = errors.New("email: failed to send")

	// ErrNoEmailAddress is returned when the recipient has no email
	// address. It is a validation failure and is never retried.
	ErrNoEmailAddress = errors.New("email: recipient has no email address")

	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("email: invalid email address")

	// ErrNoSubject is returned for messages without a subject.
	ErrNoSubject = errors.New("email: subject is required")

	// ErrNoBody is returned for messages without text or HTML content.
	ErrNoBody = errors.New("email: body is required")

	// ErrAttachmentNotFound is returned when a referenced attachment key
	// does not exist in object storage.
	ErrAttachmentNotFound = errors.New("email: attachment not found")
)
