// internal/service/dispatcher.go
package service

import (
	"context"
	"log"
	"time"

	"github.com/peakseason/trekbot-backend/internal/model"
	"github.com/peakseason/trekbot-backend/internal/repository"
	"github.com/peakseason/trekbot-backend/internal/sender"
)

const (
	// DefaultDispatchLimit bounds one round's batch.
	DefaultDispatchLimit = 50
	// reminderBatch caps reminder fan-out per round.
	reminderBatch = 20
	// reminderAge: advance_paid leads silent longer than this get a
	// balance reminder.
	reminderAge = 24 * time.Hour
	// maxErrorLen bounds the error text stored on a failed message.
	maxErrorLen = 250
	// staleSendingAge: messages stuck in sending longer than this are
	// assumed orphaned by a crashed round and reclaimed.
	staleSendingAge = 10 * time.Minute
)

// DispatcherService drains the outbound queue in rounds. Rounds may
// overlap; the store's claim keeps them off each other's messages.
type DispatcherService struct {
	MsgRepo     repository.OutboundMessageRepositoryInterface
	LeadRepo    repository.LeadRepositoryInterface
	EventRepo   repository.LeadEventRepositoryInterface
	Templates   repository.TemplateRepositoryInterface
	Sender      sender.Sender
	SendTimeout time.Duration // per-message, default 15s
}

// DispatchRound schedules due balance reminders, claims up to limit
// eligible messages and attempts delivery for each. Returns how many
// claimed messages were processed. One message's failure never blocks
// the rest of the batch.
func (s *DispatcherService) DispatchRound(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultDispatchLimit
	}
	now := time.Now()

	claimed, err := s.MsgRepo.ScheduleAndClaim(now, limit, s.reminderDrafts(now))
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, msg := range claimed {
		if ctx.Err() != nil {
			// Round aborted. Unprocessed claims stay in sending and are
			// picked up later by ReclaimStale.
			break
		}
		s.deliver(ctx, msg)
		processed++
	}
	return processed, nil
}

func (s *DispatcherService) deliver(ctx context.Context, msg *model.OutboundMessage) {
	timeout := s.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	err := s.Sender.Send(sendCtx, msg.Recipient, msg.Body)
	cancel()

	if err != nil {
		log.Println("⚠️ send failed for message", msg.ID, ":", err)
		if uerr := s.MsgRepo.MarkFailed(msg.ID, truncateError(err)); uerr != nil {
			log.Println("⚠️ failed to record failure for message", msg.ID, ":", uerr)
		}
		return
	}

	sentAt := time.Now()
	if uerr := s.MsgRepo.MarkSent(msg.ID, sentAt); uerr != nil {
		log.Println("⚠️ failed to mark message sent", msg.ID, ":", uerr)
		return
	}

	if msg.LeadID != nil {
		if err := s.EventRepo.Append(&model.LeadEvent{
			LeadID: *msg.LeadID,
			Type:   model.EventOutboundMsg,
			Body:   msg.Body,
		}); err != nil {
			log.Println("⚠️ failed to append timeline event for lead", *msg.LeadID, ":", err)
		}
		if err := s.LeadRepo.Touch(*msg.LeadID, sentAt); err != nil {
			log.Println("⚠️ failed to touch lead", *msg.LeadID, ":", err)
		}
	}
}

// reminderDrafts builds this round's balance reminders: advance_paid
// leads silent for a day, bounded batch. The store deduplicates against
// reminders still in flight inside the claim transaction.
func (s *DispatcherService) reminderDrafts(now time.Time) []repository.ReminderDraft {
	leads, err := s.LeadRepo.ListStaleAdvancePaid(now.Add(-reminderAge), reminderBatch)
	if err != nil {
		log.Println("⚠️ reminder scan failed:", err)
		return nil
	}
	if len(leads) == 0 {
		return nil
	}

	tmpl, err := s.Templates.GetByName(model.TemplateBalanceReminder)
	if err != nil {
		log.Println("⚠️ balance_reminder template unavailable:", err)
		return nil
	}

	drafts := []repository.ReminderDraft{}
	for _, lead := range leads {
		if lead.Phone == "" {
			continue
		}
		body := RenderNamed(tmpl, map[string]string{
			"name":        lead.Name,
			"balance_due": lead.Metadata[model.MetaBalanceDue],
			"amount_paid": lead.Metadata[model.MetaAmountPaid],
		})
		drafts = append(drafts, repository.ReminderDraft{
			LeadID:    lead.ID,
			Recipient: lead.Phone,
			Body:      body,
		})
	}
	return drafts
}

// RequeueFailed is the explicit retry path for a failed message:
// exponential backoff via scheduled_for, 2^retries minutes capped at a
// day.
func (s *DispatcherService) RequeueFailed(id int) error {
	msg, err := s.MsgRepo.GetByID(id)
	if err != nil {
		return err
	}
	if msg == nil || msg.Status != model.MessageFailed {
		return nil
	}
	backoff := time.Duration(1<<uint(min(msg.Retries, 10))) * time.Minute
	if backoff > 24*time.Hour {
		backoff = 24 * time.Hour
	}
	return s.MsgRepo.RequeueFailed(id, time.Now().Add(backoff))
}

// ReclaimStale requeues messages orphaned in sending by a crashed or
// aborted round.
func (s *DispatcherService) ReclaimStale() (int, error) {
	return s.MsgRepo.ReclaimStale(time.Now().Add(-staleSendingAge))
}

func truncateError(err error) string {
	text := err.Error()
	if len(text) > maxErrorLen {
		return text[:maxErrorLen]
	}
	return text
}
