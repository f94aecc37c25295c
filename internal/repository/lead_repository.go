package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
	"github.com/peakseason/trekbot-backend/internal/model"
)

// LeadRepositoryInterface defines methods used by the orchestrator and scans
type LeadRepositoryInterface interface {
	GetByPhone(phone string) (*model.Lead, error)
	GetByID(id int) (*model.Lead, error)
	Create(l *model.Lead) error
	Update(l *model.Lead) error
	Touch(id int, at time.Time) error
	UpdateStage(id int, stage string) error
	ListAbandonedEngaged() ([]*model.Lead, error)
	ListQualifiedForCampaign(contactedSince time.Time) ([]*model.Lead, error)
	ListStaleAdvancePaid(olderThan time.Time, limit int) ([]*model.Lead, error)
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, phone, name, stage, is_whatsapp, last_contact_at, metadata, trip_id, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (*model.Lead, error) {
	var l model.Lead
	var meta []byte
	err := row.Scan(&l.ID, &l.Phone, &l.Name, &l.Stage, &l.IsWhatsapp,
		&l.LastContactAt, &meta, &l.TripID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &l.Metadata); err != nil {
			return nil, fmt.Errorf("decode lead metadata: %w", err)
		}
	}
	return &l, nil
}

func (r *LeadRepository) GetByPhone(phone string) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone=$1`
	l, err := scanLead(r.DB.QueryRow(query, phone))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return l, nil
}

func (r *LeadRepository) GetByID(id int) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id=$1`
	l, err := scanLead(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewLeadNotFound(fmt.Sprintf("#%d", id))
		}
		return nil, err
	}
	return l, nil
}

func (r *LeadRepository) Create(l *model.Lead) error {
	l.CreatedAt = time.Now()
	if l.Stage == "" {
		l.Stage = model.StageNew
	}
	meta, err := json.Marshal(l.Metadata)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO leads (phone, name, stage, is_whatsapp, last_contact_at, metadata, trip_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query, l.Phone, l.Name, l.Stage, l.IsWhatsapp,
		l.LastContactAt, meta, l.TripID, l.CreatedAt).Scan(&l.ID)
}

func (r *LeadRepository) Update(l *model.Lead) error {
	meta, err := json.Marshal(l.Metadata)
	if err != nil {
		return err
	}
	query := `
        UPDATE leads
        SET name=$1, stage=$2, is_whatsapp=$3, last_contact_at=$4, metadata=$5, trip_id=$6, updated_at=NOW()
        WHERE id=$7
    `
	_, err = r.DB.Exec(query, l.Name, l.Stage, l.IsWhatsapp, l.LastContactAt, meta, l.TripID, l.ID)
	return err
}

// Touch advances last_contact_at only; never moves it backwards.
func (r *LeadRepository) Touch(id int, at time.Time) error {
	query := `
        UPDATE leads SET last_contact_at=$1, updated_at=NOW()
        WHERE id=$2 AND (last_contact_at IS NULL OR last_contact_at < $1)
    `
	_, err := r.DB.Exec(query, at, id)
	return err
}

func (r *LeadRepository) UpdateStage(id int, stage string) error {
	query := `UPDATE leads SET stage=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, stage, time.Now(), id)
	return err
}

// ListAbandonedEngaged returns engaged leads carrying an abandonment
// timestamp in metadata. Timestamp parsing is the scanner's problem.
func (r *LeadRepository) ListAbandonedEngaged() ([]*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE stage=$1 AND metadata ? $2 ORDER BY id`
	return r.queryLeads(query, model.StageEngaged, model.MetaAbandonedAt)
}

// ListQualifiedForCampaign returns campaign-targetable leads: reachable on
// whatsapp, contacted since the cutoff, in a warm stage.
func (r *LeadRepository) ListQualifiedForCampaign(contactedSince time.Time) ([]*model.Lead, error) {
	query := `
        SELECT ` + leadColumns + ` FROM leads
        WHERE phone <> '' AND is_whatsapp = TRUE
          AND last_contact_at IS NOT NULL AND last_contact_at >= $1
          AND stage = ANY($2)
        ORDER BY id
    `
	stages := pq.Array([]string{model.StageInterested, model.StageQualified, model.StageEngaged})
	return r.queryLeads(query, contactedSince, stages)
}

// ListStaleAdvancePaid returns advance_paid leads not contacted since the
// cutoff, bounded to keep one round's reminder fan-out small.
func (r *LeadRepository) ListStaleAdvancePaid(olderThan time.Time, limit int) ([]*model.Lead, error) {
	query := `
        SELECT ` + leadColumns + ` FROM leads
        WHERE stage = $1 AND last_contact_at IS NOT NULL AND last_contact_at < $2
        ORDER BY last_contact_at
        LIMIT $3
    `
	return r.queryLeads(query, model.StageAdvancePaid, olderThan, limit)
}

func (r *LeadRepository) queryLeads(query string, args ...any) ([]*model.Lead, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
