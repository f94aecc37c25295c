package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/peakseason/trekbot-backend/internal/model"
)

type LeadEventRepositoryInterface interface {
	Append(e *model.LeadEvent) error
	ListRecent(leadID, limit int) ([]*model.LeadEvent, error)
}

type LeadEventRepository struct {
	DB *sql.DB
}

// Append records a timeline event for a lead
func (r *LeadEventRepository) Append(e *model.LeadEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO lead_events (id, lead_id, type, body, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.DB.Exec(query, e.ID, e.LeadID, e.Type, e.Body, e.CreatedAt)
	return err
}

// ListRecent returns the newest events first, newest-first order reversed
// by callers that want chronological history.
func (r *LeadEventRepository) ListRecent(leadID, limit int) ([]*model.LeadEvent, error) {
	query := `
        SELECT id, lead_id, type, body, created_at
        FROM lead_events WHERE lead_id=$1
        ORDER BY created_at DESC LIMIT $2
    `
	rows, err := r.DB.Query(query, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*model.LeadEvent{}
	for rows.Next() {
		var e model.LeadEvent
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Type, &e.Body, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

var _ LeadEventRepositoryInterface = (*LeadEventRepository)(nil)
