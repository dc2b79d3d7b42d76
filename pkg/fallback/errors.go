package fallback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/campuskit/notify/pkg/notification"
)

// ErrNoProviders is returned when a chain has no configured providers.
var ErrNoProviders = errors.New("fallback: no providers configured")

// ProviderAttempt records one failed try within a chain walk.
type ProviderAttempt struct {
	Provider string
	Err      error
}

// ExhaustionError is returned when every provider in the chain failed.
// It carries the last provider's error for errors.Is/As classification
// and the full attempt list for the delivery log.
type ExhaustionError struct {
	Channel  notification.Channel
	Attempts []ProviderAttempt
	Last     error
}

func (e *ExhaustionError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: all providers exhausted: %v", e.Channel, e.Last)
	}
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Provider
	}
	return fmt.Sprintf("%s: all providers exhausted (%s): %v", e.Channel, strings.Join(names, ", "), e.Last)
}

func (e *ExhaustionError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err is a chain exhaustion.
func IsExhausted(err error) bool {
	var ex *ExhaustionError
	return errors.As(err, &ex)
}
