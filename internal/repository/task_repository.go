package repository

import (
	"database/sql"
	"time"

	"github.com/peakseason/trekbot-backend/internal/model"
)

type TaskRepositoryInterface interface {
	CreateIfAbsent(t *model.Task) (bool, error)
	HasOpen(leadID int, taskType string) (bool, error)
	Close(id int) error
}

type TaskRepository struct {
	DB *sql.DB
}

// CreateIfAbsent inserts the task unless the lead already has an open task
// of the same type. Returns false when the existing task short-circuits
// the insert. Backed by a partial unique index on (lead_id, type) WHERE
// status='open', so the dedup holds under concurrent scans too.
func (r *TaskRepository) CreateIfAbsent(t *model.Task) (bool, error) {
	if t.Status == "" {
		t.Status = model.TaskOpen
	}
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO tasks (lead_id, type, status, due_at, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (lead_id, type) WHERE status='open' DO NOTHING
        RETURNING id
    `
	err := r.DB.QueryRow(query, t.LeadID, t.Type, t.Status, t.DueAt, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil // duplicate skipped
		}
		return false, err
	}
	return true, nil
}

func (r *TaskRepository) HasOpen(leadID int, taskType string) (bool, error) {
	var count int
	err := r.DB.QueryRow(`
        SELECT COUNT(*) FROM tasks
        WHERE lead_id=$1 AND type=$2 AND status='open'`, leadID, taskType).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TaskRepository) Close(id int) error {
	query := `UPDATE tasks SET status='closed' WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)
