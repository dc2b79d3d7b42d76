package notification

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery pathway for a notification.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelPush    Channel = "push"
	ChannelWebhook Channel = "webhook"
	ChannelInApp   Channel = "inapp"
)

// Valid reports whether the channel is one of the known pathways.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWebhook, ChannelInApp:
		return true
	}
	return false
}

// Priority represents the notification priority level.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// AggregateStatus is the overall outcome of a notification across all
// requested channels.
type AggregateStatus string

const (
	AggregatePending AggregateStatus = "pending"
	AggregateSent    AggregateStatus = "sent"
	AggregatePartial AggregateStatus = "partial"
	AggregateFailed  AggregateStatus = "failed"
)

// Content is the rendered payload for one channel. Rendering happens
// upstream; this package never touches templates.
type Content struct {
	Subject     string         `json:"subject,omitempty"`
	Text        string         `json:"text,omitempty"`
	HTML        string         `json:"html,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Attachments []string       `json:"attachments,omitempty"` // object storage keys
}

// Notification is the unit of dispatch. Immutable once sent except for
// status and read counters.
type Notification struct {
	ID       uuid.UUID           `json:"id"`
	TenantID string              `json:"tenant_id"`
	Type     string              `json:"type"` // category, e.g. "fee.reminder"
	Priority Priority            `json:"priority"`
	Channels []Channel           `json:"channels"`
	Content  map[Channel]Content `json:"content"`

	Status    AggregateStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// New builds a notification with a fresh id and pending status.
func New(tenantID, notifType string, priority Priority, channels []Channel) Notification {
	return Notification{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      notifType,
		Priority:  priority,
		Channels:  channels,
		Content:   make(map[Channel]Content),
		Status:    AggregatePending,
		CreatedAt: time.Now(),
	}
}

// ContentFor returns the rendered content for a channel, falling back to
// the in-app content when a channel has none of its own. A notification
// submitted with only generic content is still deliverable everywhere.
func (n Notification) ContentFor(ch Channel) Content {
	if c, ok := n.Content[ch]; ok {
		return c
	}
	return n.Content[ChannelInApp]
}

// HasChannel reports whether ch is in the notification's target set.
func (n Notification) HasChannel(ch Channel) bool {
	for _, c := range n.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Aggregate derives the overall status from per-channel outcomes:
// sent when every channel succeeded, failed when none did, partial
// otherwise. Callers must still inspect per-channel results.
func Aggregate(succeeded, failed int) AggregateStatus {
	switch {
	case succeeded == 0 && failed == 0:
		return AggregatePending
	case failed == 0:
		return AggregateSent
	case succeeded == 0:
		return AggregateFailed
	default:
		return AggregatePartial
	}
}
