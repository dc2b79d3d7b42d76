package inapp

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is a persisted in-app notification for one user. A user with
// no live connection is not a delivery failure; records stay
// retrievable until read.
type Record struct {
	ID             uuid.UUID      `json:"id"`
	UserID         string         `json:"user_id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	Type           string         `json:"type"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data,omitempty"`
	Actions        []Action       `json:"actions,omitempty"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Read reports whether the record has been marked read.
func (r Record) Read() bool { return r.ReadAt != nil }

// Action is a call-to-action button rendered with the notification.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// actionsByPrefix derives action buttons from the notification type.
// The type namespace follows "<domain>.<event>" so a prefix match is
// enough to pick a landing page.
var actionsByPrefix = []struct {
	prefix  string
	actions []Action
}{
	{"fee.", []Action{{Label: "View invoice", URL: "/fees"}}},
	{"grade.", []Action{{Label: "View grades", URL: "/grades"}}},
	{"attendance.", []Action{{Label: "View attendance", URL: "/attendance"}}},
	{"hostel.", []Action{{Label: "View hostel", URL: "/hostel"}}},
	{"announcement", []Action{{Label: "Read announcement", URL: "/announcements"}}},
}

// ActionsFor returns the derived action buttons for a notification
// type. Unknown types get none.
func ActionsFor(notifType string) []Action {
	for _, entry := range actionsByPrefix {
		if strings.HasPrefix(notifType, entry.prefix) {
			return entry.actions
		}
	}
	return nil
}
