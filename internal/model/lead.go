// internal/model/lead.go
package model

import "time"

// Lead stages, in funnel order. Re-engagement moves a lead back to
// interested; lost is terminal but a lead record is never deleted here.
const (
	StageNew         = "new"
	StageInterested  = "interested"
	StageEngaged     = "engaged"
	StageQualified   = "qualified"
	StageAdvancePaid = "advance_paid"
	StageBooked      = "booked"
	StageLost        = "lost"
)

type Lead struct {
	ID            int               `db:"id" json:"id"`
	Phone         string            `db:"phone" json:"phone"`
	Name          string            `db:"name" json:"name"`
	Stage         string            `db:"stage" json:"stage"`
	IsWhatsapp    bool              `db:"is_whatsapp" json:"is_whatsapp"`
	LastContactAt *time.Time        `db:"last_contact_at" json:"last_contact_at,omitempty"`
	Metadata      map[string]string `db:"metadata" json:"metadata,omitempty"`
	TripID        *int              `db:"trip_id" json:"trip_id,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
}

// Metadata keys the core reads and writes.
const (
	MetaAbandonedAt  = "abandoned_at"
	MetaInterestTags = "interest_tags"
	MetaBudgetRange  = "budget_range"
	MetaAmountPaid   = "amount_paid"
	MetaBalanceDue   = "balance_due"
)
