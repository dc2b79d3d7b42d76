package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the JSON payload delivered to subscriber endpoints.
type Event struct {
	ID             uuid.UUID      `json:"id"`
	Event          string         `json:"event"`
	NotificationID uuid.UUID      `json:"notification_id"`
	TenantID       string         `json:"tenant_id"`
	Type           string         `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	Data           map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(event string, notificationID uuid.UUID, tenantID, notifType string, data map[string]any) Event {
	return Event{
		ID:             uuid.New(),
		Event:          event,
		NotificationID: notificationID,
		TenantID:       tenantID,
		Type:           notifType,
		Timestamp:      time.Now().UTC(),
		Data:           data,
	}
}

// Marshal returns the exact bytes that go on the wire. Signatures are
// computed over these bytes, so callers must deliver them unmodified.
func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return b, nil
}
