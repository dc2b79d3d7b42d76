package webhook

import "errors"

var (
	// ErrDeliveryFailed is returned when all delivery attempts were
	// exhausted without a 2xx response.
	ErrDeliveryFailed = errors.New("webhook delivery failed")

	// ErrPermanentFailure marks 4xx responses that will not resolve with
	// retries. 408 and 429 are excluded; they are temporary by nature.
	ErrPermanentFailure = errors.New("permanent webhook failure")

	// ErrTemporaryFailure marks network-level failures worth retrying.
	ErrTemporaryFailure = errors.New("temporary webhook failure")

	// ErrCircuitOpen is returned when the endpoint's circuit breaker is
	// rejecting requests.
	ErrCircuitOpen = errors.New("webhook circuit breaker is open")

	// ErrTimeout is returned when a single attempt exceeded its deadline.
	ErrTimeout = errors.New("webhook request timeout")

	// ErrInvalidURL is returned for empty, malformed or non-HTTP URLs.
	ErrInvalidURL = errors.New("invalid webhook URL")

	// ErrInvalidPayload is returned for empty payloads.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrInvalidSignature is returned when an inbound payload's
	// signature is missing or does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingSecret is returned when signing or verification is
	// attempted without a secret.
	ErrMissingSecret = errors.New("webhook secret is required")

	// ErrSubscriptionNotFound is returned for operations on unknown
	// subscription ids.
	ErrSubscriptionNotFound = errors.New("webhook subscription not found")
)

// IsCircuitOpen reports whether err indicates an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
