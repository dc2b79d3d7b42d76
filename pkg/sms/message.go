package sms

// Message is the provider-neutral SMS. To is always E.164 by the time
// a provider sees it.
type Message struct {
	To   string `json:"to"`
	Body string `json:"body"`
	Tag  string `json:"tag,omitempty"` // correlation: notificationID/tenant/type
}

// Validate checks the minimum a provider needs to accept the message.
func (m Message) Validate() error {
	if m.To == "" {
		return ErrNoPhoneNumber
	}
	if m.Body == "" {
		return ErrNoBody
	}
	return nil
}
