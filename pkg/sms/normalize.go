package sms

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Normalize parses a raw phone number into E.164. Numbers without a
// country code are interpreted in defaultRegion (ISO 3166-1 alpha-2,
// e.g. "US"); numbers already carrying +CC keep it.
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhoneNumber
	}

	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhoneNumber, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ResolvePhone walks the candidate numbers in order and returns the
// first that normalizes. School records often hold the usable number
// on the guardian rather than the student.
func ResolvePhone(candidates []string, defaultRegion string) (string, error) {
	for _, raw := range candidates {
		if normalized, err := Normalize(raw, defaultRegion); err == nil {
			return normalized, nil
		}
	}
	return "", ErrNoPhoneNumber
}
