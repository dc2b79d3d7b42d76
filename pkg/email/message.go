package email

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Message is the provider-neutral email every provider in the chain
// knows how to send.
type Message struct {
	To       string            `json:"to"`
	ToName   string            `json:"to_name,omitempty"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Tag      string            `json:"tag,omitempty"` // correlation: notificationID/tenant/type
	Metadata map[string]string `json:"metadata,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a loaded file ready to hand to a provider.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Validate checks the minimum a provider needs to accept the message.
func (m Message) Validate() error {
	if m.To == "" {
		return ErrNoEmailAddress
	}
	if !emailRegex.MatchString(m.To) {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, m.To)
	}
	if m.Subject == "" {
		return ErrNoSubject
	}
	if m.Text == "" && m.HTML == "" {
		return ErrNoBody
	}
	return nil
}

// Body returns the HTML body, generating a minimal one from the plain
// text when no HTML was rendered upstream. Providers always get both
// parts.
func (m Message) Body() string {
	if m.HTML != "" {
		return m.HTML
	}
	escaped := html.EscapeString(m.Text)
	return "<html><body><p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p></body></html>"
}
