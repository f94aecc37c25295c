package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/peakseason/trekbot-backend/internal/model"
)

// ReminderDraft is a balance reminder the dispatcher wants enqueued at the
// start of a round. The insert is skipped inside the round transaction if
// the lead already has a queued or in-flight reminder.
type ReminderDraft struct {
	LeadID    int
	Recipient string
	Body      string
}

type OutboundMessageRepositoryInterface interface {
	Enqueue(msg *model.OutboundMessage) error
	GetByID(id int) (*model.OutboundMessage, error)
	ScheduleAndClaim(now time.Time, limit int, reminders []ReminderDraft) ([]*model.OutboundMessage, error)
	MarkSent(id int, at time.Time) error
	MarkFailed(id int, errText string) error
	RequeueFailed(id int, at time.Time) error
	ReclaimStale(before time.Time) (int, error)
	CountByStatus() (map[string]int, error)
}

type OutboundMessageRepository struct {
	DB *sql.DB
}

const messageColumns = `id, recipient, template_name, body, status, retries, scheduled_for, lead_id, last_error, sent_at, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.OutboundMessage, error) {
	var m model.OutboundMessage
	err := row.Scan(&m.ID, &m.Recipient, &m.TemplateName, &m.Body, &m.Status,
		&m.Retries, &m.ScheduledFor, &m.LeadID, &m.LastError, &m.SentAt,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Enqueue inserts a new queued outbound message
func (r *OutboundMessageRepository) Enqueue(msg *model.OutboundMessage) error {
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = model.MessageQueued
	}
	query := `
        INSERT INTO outbound_messages
        (recipient, template_name, body, status, retries, scheduled_for, lead_id, last_error, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	return r.DB.QueryRow(query, msg.Recipient, msg.TemplateName, msg.Body,
		msg.Status, msg.Retries, msg.ScheduledFor, msg.LeadID, msg.LastError,
		msg.CreatedAt, msg.UpdatedAt).Scan(&msg.ID)
}

func (r *OutboundMessageRepository) GetByID(id int) (*model.OutboundMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM outbound_messages WHERE id=$1`
	m, err := scanMessage(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ScheduleAndClaim runs one dispatch round's claim step in a single
// transaction: insert the reminder drafts (deduplicated per lead), then
// claim up to limit eligible messages and flip them to sending. Row locks
// with SKIP LOCKED keep concurrent rounds off each other's batches, so no
// message is ever claimed twice.
func (r *OutboundMessageRepository) ScheduleAndClaim(now time.Time, limit int, reminders []ReminderDraft) ([]*model.OutboundMessage, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	insert := `
        INSERT INTO outbound_messages
        (recipient, template_name, body, status, retries, lead_id, created_at, updated_at)
        SELECT $1, $2, $3, 'queued', 0, $4, $5, $5
        WHERE NOT EXISTS (
            SELECT 1 FROM outbound_messages
            WHERE lead_id = $4 AND template_name = $2 AND status IN ('queued', 'sending')
        )
    `
	for _, d := range reminders {
		if _, err := tx.Exec(insert, d.Recipient, model.TemplateBalanceReminder, d.Body, d.LeadID, now); err != nil {
			return nil, err
		}
	}

	claim := `
        SELECT ` + messageColumns + ` FROM outbound_messages
        WHERE status = 'queued' AND (scheduled_for IS NULL OR scheduled_for <= $1)
        ORDER BY id
        LIMIT $2
        FOR UPDATE SKIP LOCKED
    `
	rows, err := tx.Query(claim, now, limit)
	if err != nil {
		return nil, err
	}

	claimed := []*model.OutboundMessage{}
	ids := []int{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, m)
		ids = append(ids, m.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		mark := `UPDATE outbound_messages SET status='sending', updated_at=$1 WHERE id = ANY($2)`
		if _, err := tx.Exec(mark, now, pq.Array(ids)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, m := range claimed {
		m.Status = model.MessageSending
	}
	return claimed, nil
}

func (r *OutboundMessageRepository) MarkSent(id int, at time.Time) error {
	query := `UPDATE outbound_messages SET status='sent', sent_at=$1, last_error='', updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, at, id)
	return err
}

func (r *OutboundMessageRepository) MarkFailed(id int, errText string) error {
	query := `UPDATE outbound_messages SET status='failed', last_error=$1, retries=retries+1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, errText, id)
	return err
}

// RequeueFailed is the explicit follow-up for a failed message: back to
// queued, gated by scheduled_for.
func (r *OutboundMessageRepository) RequeueFailed(id int, at time.Time) error {
	query := `UPDATE outbound_messages SET status='queued', scheduled_for=$1, updated_at=NOW() WHERE id=$2 AND status='failed'`
	_, err := r.DB.Exec(query, at, id)
	return err
}

// ReclaimStale resets messages stuck in sending since before the cutoff
// back to queued. Crash recovery for rounds that died mid-flight.
func (r *OutboundMessageRepository) ReclaimStale(before time.Time) (int, error) {
	query := `UPDATE outbound_messages SET status='queued', updated_at=NOW() WHERE status='sending' AND updated_at < $1`
	res, err := r.DB.Exec(query, before)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *OutboundMessageRepository) CountByStatus() (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM outbound_messages GROUP BY status`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"queued": 0, "sending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ OutboundMessageRepositoryInterface = (*OutboundMessageRepository)(nil)
