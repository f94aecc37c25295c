// internal/handler/admin_handler.go
package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/peakseason/trekbot-backend/internal/llm"
	"github.com/peakseason/trekbot-backend/internal/repository"
	"github.com/peakseason/trekbot-backend/internal/service"
)

// AdminHandler holds the dependencies for the operational endpoints
type AdminHandler struct {
	Templates *service.TemplateService
	Stats     *llm.UsageStats
	LeadRepo  repository.LeadRepositoryInterface
	EventRepo repository.LeadEventRepositoryInterface
	MsgRepo   repository.OutboundMessageRepositoryInterface
}

// SeedTemplatesHandler upserts the built-in message templates
func (h *AdminHandler) SeedTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.Templates.SeedDefaults()
	if err != nil {
		http.Error(w, "failed to seed templates: "+err.Error(), http.StatusInternalServerError)
		return
	}
	log.Println("✅ Seeded templates:", n)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"seeded": n})
}

// UsageStatsHandler returns the usage dashboard snapshot, per role,
// alongside outbound queue counts.
func (h *AdminHandler) UsageStatsHandler(w http.ResponseWriter, r *http.Request) {
	queueStats, err := h.MsgRepo.CountByStatus()
	if err != nil {
		http.Error(w, "failed to fetch queue stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"roles": h.Stats.Snapshot(),
		"queue": queueStats,
	})
}

// ResetUsageHandler zeroes the usage counters
func (h *AdminHandler) ResetUsageHandler(w http.ResponseWriter, r *http.Request) {
	h.Stats.Reset()
	log.Println("📊 Usage stats reset")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

// GetLeadHandler returns a lead and its recent timeline by phone
func (h *AdminHandler) GetLeadHandler(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	lead, err := h.LeadRepo.GetByPhone(phone)
	if err != nil {
		http.Error(w, "failed to fetch lead: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if lead == nil {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}

	events, err := h.EventRepo.ListRecent(lead.ID, 50)
	if err != nil {
		http.Error(w, "failed to fetch events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"lead":   lead,
		"events": events,
	})
}
