package reconcile

import (
	"strings"

	"github.com/campuskit/notify/pkg/notification"
)

// vendorEvents maps provider-specific event names to canonical
// statuses. Providers disagree on vocabulary; this table is the single
// place the chaos is absorbed.
var vendorEvents = map[string]notification.Status{
	"delivered":      notification.StatusDelivered,
	"delivery":       notification.StatusDelivered,
	"open":           notification.StatusDelivered,
	"opened":         notification.StatusDelivered,
	"bounce":         notification.StatusBounced,
	"bounced":        notification.StatusBounced,
	"permanent_fail": notification.StatusBounced,
	"dropped":        notification.StatusFailed,
	"failed":         notification.StatusFailed,
	"rejected":       notification.StatusRejected,
	"spam_complaint": notification.StatusRejected,
}

// MapEvent translates a vendor event name to a canonical status. An
// unrecognized event maps to SENT: the message is in flight and nothing
// terminal has been confirmed.
func MapEvent(event string) notification.Status {
	if status, ok := vendorEvents[strings.ToLower(strings.TrimSpace(event))]; ok {
		return status
	}
	return notification.StatusSent
}
