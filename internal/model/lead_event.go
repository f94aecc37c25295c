// internal/model/lead_event.go
package model

import "time"

const (
	EventInboundMsg  = "inbound_msg"
	EventOutboundMsg = "outbound_msg"
	EventStageChange = "stage_change"
)

type LeadEvent struct {
	ID        string    `db:"id" json:"id"` // uuid
	LeadID    int       `db:"lead_id" json:"lead_id"`
	Type      string    `db:"type" json:"type"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
