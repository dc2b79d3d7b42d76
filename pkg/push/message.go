package push

// PriorityHigh and PriorityNormal are the provider-neutral delivery
// priorities; providers map them onto their own wire values.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Message is the provider-neutral push notification for one recipient's
// device set.
type Message struct {
	Tokens   []string          `json:"tokens"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority"` // "high" or "normal"

	// OnInvalid, when set, receives tokens the provider reported as
	// invalid or unregistered so the caller can deactivate them.
	OnInvalid func(tokens []string) `json:"-"`
}

// Validate checks the minimum a provider needs to accept the message.
func (m Message) Validate() error {
	if len(m.Tokens) == 0 {
		return ErrNoDeviceTokens
	}
	if m.Title == "" && m.Body == "" {
		return ErrNoBody
	}
	return nil
}

func (m Message) reportInvalid(tokens []string) {
	if m.OnInvalid != nil && len(tokens) > 0 {
		m.OnInvalid(tokens)
	}
}
