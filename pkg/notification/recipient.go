package notification

// Recipient carries the contact data a dispatch needs. It is supplied
// by the caller; this subsystem never reads the business data model
// directly.
type Recipient struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`

	Email string `json:"email,omitempty"`

	// Phone sources in resolution order. School records often hold the
	// usable number on the guardian rather than the student.
	Phone         string `json:"phone,omitempty"`
	GuardianPhone string `json:"guardian_phone,omitempty"`

	Locale string `json:"locale,omitempty"`
}

// PhoneCandidates returns the possible phone sources in resolution
// order, skipping empty ones.
func (r Recipient) PhoneCandidates() []string {
	out := make([]string, 0, 2)
	if r.Phone != "" {
		out = append(out, r.Phone)
	}
	if r.GuardianPhone != "" {
		out = append(out, r.GuardianPhone)
	}
	return out
}
