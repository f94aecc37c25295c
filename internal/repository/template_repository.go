package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
	"github.com/peakseason/trekbot-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByName(name string) (*model.MessageTemplate, error)
	Upsert(t *model.MessageTemplate) error
	ListActive() ([]*model.MessageTemplate, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

// GetByName fetches an active template by its unique name
func (r *TemplateRepository) GetByName(name string) (*model.MessageTemplate, error) {
	query := `
        SELECT id, name, category, body, variables, active, created_at
        FROM message_templates WHERE name=$1 AND active=TRUE
    `
	var t model.MessageTemplate
	err := r.DB.QueryRow(query, name).Scan(&t.ID, &t.Name, &t.Category,
		&t.Body, pq.Array(&t.Variables), &t.Active, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewTemplateNotFound(name)
		}
		return nil, err
	}
	return &t, nil
}

// Upsert inserts or replaces a template by name. Used by seeding only;
// templates are immutable otherwise.
func (r *TemplateRepository) Upsert(t *model.MessageTemplate) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO message_templates (name, category, body, variables, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (name) DO UPDATE
        SET category=EXCLUDED.category, body=EXCLUDED.body,
            variables=EXCLUDED.variables, active=EXCLUDED.active
        RETURNING id
    `
	return r.DB.QueryRow(query, t.Name, t.Category, t.Body,
		pq.Array(t.Variables), t.Active, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) ListActive() ([]*model.MessageTemplate, error) {
	query := `
        SELECT id, name, category, body, variables, active, created_at
        FROM message_templates WHERE active=TRUE ORDER BY name
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*model.MessageTemplate{}
	for rows.Next() {
		var t model.MessageTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Body,
			pq.Array(&t.Variables), &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
