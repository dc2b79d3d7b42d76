package notification

import "strings"

// Status is the canonical per-delivery status every provider-specific
// event is mapped into. These six values are the external contract of
// any status-reporting API; no other strings are valid.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusBounced   Status = "BOUNCED"
	StatusFailed    Status = "FAILED"
	StatusRejected  Status = "REJECTED"
)

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered, StatusBounced, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status can no longer change through
// provider callbacks. Sent is not terminal: a delivery confirmation or
// bounce may still arrive.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusBounced, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// ParseStatus normalizes a status string into a canonical Status.
// Unknown strings return false.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}
