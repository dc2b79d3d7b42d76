package sms

import "errors"

var (
	// ErrInvalidConfig is returned when a provider is constructed with
	// missing credentials.
	ErrInvalidConfig = errors.New("sms: invalid config")

	// ErrSendFailed wraps provider transport and API failures.
	ErrSendFailed = errors.New("sms: failed to send")

	// ErrNoPhoneNumber is returned when no usable phone number exists
	// across the recipient's profile sources. It is a validation
	// failure and is never retried.
	ErrNoPhoneNumber = errors.New("sms: recipient has no usable phone number")

	// ErrInvalidPhoneNumber is returned when a raw number cannot be
	// normalized to E.164.
	ErrInvalidPhoneNumber = errors.New("sms: invalid phone number")

	// ErrNoBody is returned for messages without text.
	ErrNoBody = errors.New("sms: body is required")
)
