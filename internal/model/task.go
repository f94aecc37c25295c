// internal/model/task.go
package model

import "time"

const (
	TaskOpen   = "open"
	TaskClosed = "closed"
)

// TaskReengage is the follow-up created for leads that abandoned a booking.
const TaskReengage = "abandoned_reengage"

// Task invariant: at most one open task of a given type per lead.
type Task struct {
	ID        int       `db:"id" json:"id"`
	LeadID    int       `db:"lead_id" json:"lead_id"`
	Type      string    `db:"type" json:"type"`
	Status    string    `db:"status" json:"status"`
	DueAt     time.Time `db:"due_at" json:"due_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
