// internal/service/lifecycle.go
package service

import (
	"context"
	"log"
	"time"

	"github.com/peakseason/trekbot-backend/internal/model"
	"github.com/peakseason/trekbot-backend/internal/repository"
)

const (
	// abandonCooldown: how long after abandonment before we re-engage.
	abandonCooldown = 20 * time.Minute
	// reengageTaskDue: the follow-up task's due offset.
	reengageTaskDue = 10 * time.Minute
	// campaignHorizon: departures further out are not promoted yet.
	campaignHorizon = 90 * 24 * time.Hour
	// contactWindow: leads silent longer than this are not campaign
	// targets.
	contactWindow = 30 * 24 * time.Hour
)

// Occupancy tier thresholds. High occupancy means few spots left, which
// escalates the outreach tone.
const (
	criticalOccupancy = 0.8
	moderateOccupancy = 0.6
)

// LifecycleService runs the two recurring lead scans.
type LifecycleService struct {
	LeadRepo  repository.LeadRepositoryInterface
	TaskRepo  repository.TaskRepositoryInterface
	MsgRepo   repository.OutboundMessageRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	TripRepo  repository.TripRepositoryInterface
}

// ScanResult reports what one scan pass did.
type ScanResult struct {
	LeadsScanned      int `json:"leads_scanned"`
	TasksCreated      int `json:"tasks_created"`
	MessagesQueued    int `json:"messages_queued"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
}

// ScanAbandoned finds engaged leads that walked away from a booking at
// least the cooldown ago, opens one re-engagement task each (deduplicated)
// and queues a templated follow-up when the lead is reachable. A lead
// with a malformed abandonment timestamp is skipped, not an error.
func (s *LifecycleService) ScanAbandoned(ctx context.Context) (*ScanResult, error) {
	leads, err := s.LeadRepo.ListAbandonedEngaged()
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	now := time.Now()
	for _, lead := range leads {
		if ctx.Err() != nil {
			break
		}
		result.LeadsScanned++

		abandonedAt, err := time.Parse(time.RFC3339, lead.Metadata[model.MetaAbandonedAt])
		if err != nil {
			continue // malformed or missing timestamp
		}
		if now.Sub(abandonedAt) < abandonCooldown {
			continue
		}

		created, err := s.TaskRepo.CreateIfAbsent(&model.Task{
			LeadID: lead.ID,
			Type:   model.TaskReengage,
			Status: model.TaskOpen,
			DueAt:  now.Add(reengageTaskDue),
		})
		if err != nil {
			log.Println("⚠️ failed to create re-engagement task for lead", lead.ID, ":", err)
			continue
		}
		if !created {
			result.DuplicatesSkipped++
			continue
		}
		result.TasksCreated++

		if lead.Phone == "" {
			continue
		}
		tmpl, err := s.Templates.GetByName(model.TemplateAbandonedCart)
		if err != nil {
			log.Println("⚠️ re-engagement template unavailable:", err)
			continue
		}
		msg := &model.OutboundMessage{
			Recipient:    lead.Phone,
			TemplateName: &tmpl.Name,
			Body:         RenderNamed(tmpl, map[string]string{"name": lead.Name}),
			Status:       model.MessageQueued,
			LeadID:       &lead.ID,
		}
		if err := s.MsgRepo.Enqueue(msg); err != nil {
			log.Println("⚠️ failed to enqueue follow-up for lead", lead.ID, ":", err)
			continue
		}
		result.MessagesQueued++
	}
	return result, nil
}

// ScanCampaigns promotes eligible trips to qualified leads. The trip's
// occupancy picks one of three escalating template tiers.
func (s *LifecycleService) ScanCampaigns(ctx context.Context) (*ScanResult, error) {
	now := time.Now()
	trips, err := s.TripRepo.ListCampaignEligible(now.Add(campaignHorizon))
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	if len(trips) == 0 {
		return result, nil
	}

	leads, err := s.LeadRepo.ListQualifiedForCampaign(now.Add(-contactWindow))
	if err != nil {
		return nil, err
	}
	result.LeadsScanned = len(leads)

	for _, trip := range trips {
		if ctx.Err() != nil {
			break
		}
		tmplName := CampaignTier(trip.Occupancy())
		tmpl, err := s.Templates.GetByName(tmplName)
		if err != nil {
			log.Println("⚠️ campaign template unavailable:", tmplName, err)
			continue
		}

		for _, lead := range leads {
			msg := &model.OutboundMessage{
				Recipient:    lead.Phone,
				TemplateName: &tmpl.Name,
				Body: RenderNamed(tmpl, map[string]string{
					"name":      lead.Name,
					"trip_name": trip.Name,
					"price":     trip.Price,
					"discount":  trip.Discount,
					"deadline":  trip.BookingDeadline,
				}),
				Status: model.MessageQueued,
				LeadID: &lead.ID,
			}
			if err := s.MsgRepo.Enqueue(msg); err != nil {
				log.Println("⚠️ failed to enqueue campaign message for lead", lead.ID, ":", err)
				continue
			}
			result.MessagesQueued++
		}
	}
	return result, nil
}

// CampaignTier maps a trip's occupancy to a template tier.
func CampaignTier(occupancy float64) string {
	switch {
	case occupancy >= criticalOccupancy:
		return model.TemplateCampaignCritical
	case occupancy >= moderateOccupancy:
		return model.TemplateCampaignModerate
	default:
		return model.TemplateCampaignNormal
	}
}
