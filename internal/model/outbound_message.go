// internal/model/outbound_message.go
package model

import "time"

// OutboundMessage statuses. A message is eligible for dispatch iff
// status is queued and scheduled_for is unset or in the past.
const (
	MessageQueued  = "queued"
	MessageSending = "sending"
	MessageSent    = "sent"
	MessageFailed  = "failed"
)

type OutboundMessage struct {
	ID           int        `db:"id" json:"id"`
	Recipient    string     `db:"recipient" json:"recipient"`
	TemplateName *string    `db:"template_name" json:"template_name,omitempty"` // nil for ad hoc bodies
	Body         string     `db:"body" json:"body"`
	Status       string     `db:"status" json:"status"`
	Retries      int        `db:"retries" json:"retries"`
	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	LeadID       *int       `db:"lead_id" json:"lead_id,omitempty"`
	LastError    string     `db:"last_error" json:"last_error,omitempty"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Eligible reports whether the message may be claimed for dispatch at t.
func (m *OutboundMessage) Eligible(t time.Time) bool {
	if m.Status != MessageQueued {
		return false
	}
	return m.ScheduledFor == nil || !m.ScheduledFor.After(t)
}
