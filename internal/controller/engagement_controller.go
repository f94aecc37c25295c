// internal/controller/engagement_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
	"github.com/peakseason/trekbot-backend/internal/service"
)

type EngagementController struct {
	Orchestrator *service.Orchestrator
	Dispatcher   *service.DispatcherService
	Lifecycle    *service.LifecycleService
}

// Inbound accepts one customer message and returns the pipeline's reply.
// Duplicate deliveries of the same webhook are NOT deduplicated.
func (c *EngagementController) Inbound(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
		LeadID *int   `json:"lead_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Sender == "" || body.Text == "" {
		http.Error(w, "sender and text are required", http.StatusBadRequest)
		return
	}

	result, err := c.Orchestrator.HandleInbound(r.Context(), body.Sender, body.Text, body.LeadID)
	if err != nil {
		var exhausted *appErrors.PipelineExhausted
		if errors.As(err, &exhausted) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": "pipeline_exhausted",
			})
			return
		}
		log.Println("❌ inbound pipeline error:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RunDispatch triggers one dispatcher round.
func (c *EngagementController) RunDispatch(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultDispatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	processed, err := c.Dispatcher.DispatchRound(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

// RunScans triggers both lifecycle scans.
func (c *EngagementController) RunScans(w http.ResponseWriter, r *http.Request) {
	abandoned, err := c.Lifecycle.ScanAbandoned(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	campaigns, err := c.Lifecycle.ScanCampaigns(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"abandoned": abandoned,
		"campaigns": campaigns,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
