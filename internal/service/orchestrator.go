// internal/service/orchestrator.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
	"github.com/peakseason/trekbot-backend/internal/llm"
	"github.com/peakseason/trekbot-backend/internal/model"
	"github.com/peakseason/trekbot-backend/internal/queue"
	"github.com/peakseason/trekbot-backend/internal/repository"
)

// RoleInvoker is the slice of the llm client the orchestrator needs.
type RoleInvoker interface {
	Invoke(ctx context.Context, role string, history []llm.ChatMessage) (string, error)
}

// Orchestrator runs the four-role pipeline over one inbound message:
// Analyze → Track → Strategize → Write. A stage failure falls back to a
// safe default and the pipeline keeps going; a sales reply must still
// come out the other end.
type Orchestrator struct {
	LLM       RoleInvoker
	LeadRepo  repository.LeadRepositoryInterface
	EventRepo repository.LeadEventRepositoryInterface
	MsgRepo   repository.OutboundMessageRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Queue     queue.Queue // optional dispatch nudge

	HistoryLimit int // conversation turns fed to tracker/strategist, default 20
}

// EngagementResult is the inbound caller's reply.
type EngagementResult struct {
	ResponseText string        `json:"response_text"`
	Analysis     *llm.Analysis `json:"analysis"`
	Tracking     *llm.Tracking `json:"tracking"`
	Strategy     *llm.Strategy `json:"strategy"`
}

// HandleInbound processes one customer message end to end: lead upsert,
// pipeline, inbound event, queued reply. Only a fully exhausted pipeline
// surfaces an error to the caller.
func (o *Orchestrator) HandleInbound(ctx context.Context, senderPhone, text string, leadID *int) (*EngagementResult, error) {
	now := time.Now()

	lead, err := o.resolveLead(senderPhone, leadID, now)
	if err != nil {
		return nil, err
	}

	history, err := o.conversationHistory(lead.ID)
	if err != nil {
		log.Println("⚠️ failed to load conversation history:", err)
		history = nil // first-contact shape, pipeline tolerates it
	}

	analysis := o.analyze(ctx, text)
	tracking := o.track(ctx, lead, history, analysis)
	strategy := o.strategize(ctx, lead, analysis, tracking)

	reply, err := o.write(ctx, lead, text, analysis, strategy)
	if err != nil {
		return nil, err
	}

	if err := o.LeadRepo.Touch(lead.ID, now); err != nil {
		log.Println("⚠️ failed to update last_contact_at:", err)
	}
	if err := o.EventRepo.Append(&model.LeadEvent{
		LeadID: lead.ID,
		Type:   model.EventInboundMsg,
		Body:   text,
	}); err != nil {
		log.Println("⚠️ failed to record inbound event:", err)
	}

	msg := &model.OutboundMessage{
		Recipient: lead.Phone,
		Body:      reply,
		Status:    model.MessageQueued,
		LeadID:    &lead.ID,
	}
	if err := o.MsgRepo.Enqueue(msg); err != nil {
		return nil, fmt.Errorf("enqueue reply: %w", err)
	}
	if err := o.EventRepo.Append(&model.LeadEvent{
		LeadID: lead.ID,
		Type:   model.EventOutboundMsg,
		Body:   reply,
	}); err != nil {
		log.Println("⚠️ failed to record reply event:", err)
	}
	if o.Queue != nil {
		if err := o.Queue.Publish(queue.TopicOutboundSends, msg.ID); err != nil {
			log.Println("⚠️ failed to nudge dispatcher:", err)
		}
	}

	return &EngagementResult{
		ResponseText: reply,
		Analysis:     analysis,
		Tracking:     tracking,
		Strategy:     strategy,
	}, nil
}

func (o *Orchestrator) resolveLead(phone string, leadID *int, now time.Time) (*model.Lead, error) {
	if leadID != nil {
		return o.LeadRepo.GetByID(*leadID)
	}
	lead, err := o.LeadRepo.GetByPhone(phone)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		lead = &model.Lead{
			Phone:         phone,
			Stage:         model.StageNew,
			IsWhatsapp:    true,
			LastContactAt: &now,
		}
		if err := o.LeadRepo.Create(lead); err != nil {
			return nil, err
		}
	}
	return lead, nil
}

// conversationHistory rebuilds recent turns from the lead timeline,
// oldest first. Empty on first contact.
func (o *Orchestrator) conversationHistory(leadID int) ([]llm.ChatMessage, error) {
	limit := o.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	events, err := o.EventRepo.ListRecent(leadID, limit)
	if err != nil {
		return nil, err
	}
	history := make([]llm.ChatMessage, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- { // newest-first → chronological
		e := events[i]
		switch e.Type {
		case model.EventInboundMsg:
			history = append(history, llm.ChatMessage{Role: "user", Content: e.Body})
		case model.EventOutboundMsg:
			history = append(history, llm.ChatMessage{Role: "assistant", Content: e.Body})
		}
	}
	return history, nil
}

// analyze classifies intent, sentiment and buy-readiness from the raw
// text alone.
func (o *Orchestrator) analyze(ctx context.Context, text string) *llm.Analysis {
	raw, err := o.LLM.Invoke(ctx, llm.RoleAnalyzer, []llm.ChatMessage{{Role: "user", Content: text}})
	if err == nil {
		if a, perr := llm.ParseAnalysis(raw); perr == nil {
			return a
		} else {
			err = perr
		}
	}
	log.Println("⚠️ analyzer failed, using neutral default:", err)
	return &llm.Analysis{Intent: "general_inquiry", Sentiment: "neutral", BuyReadiness: 5, Fallback: true}
}

func (o *Orchestrator) track(ctx context.Context, lead *model.Lead, history []llm.ChatMessage, analysis *llm.Analysis) *llm.Tracking {
	prompt := fmt.Sprintf("Lead stage: %s\nAnalysis: %s\nConversation:\n%s",
		lead.Stage, mustJSON(analysis), renderHistory(history))
	raw, err := o.LLM.Invoke(ctx, llm.RoleTracker, []llm.ChatMessage{{Role: "user", Content: prompt}})
	if err == nil {
		if t, perr := llm.ParseTracking(raw); perr == nil {
			return t
		} else {
			err = perr
		}
	}
	log.Println("⚠️ tracker failed, using default:", err)
	return &llm.Tracking{JourneyStage: lead.Stage, RiskLevel: 50, NextAction: "continue_conversation", Fallback: true}
}

func (o *Orchestrator) strategize(ctx context.Context, lead *model.Lead, analysis *llm.Analysis, tracking *llm.Tracking) *llm.Strategy {
	prompt := fmt.Sprintf("Lead stage: %s\nAnalysis: %s\nTracking: %s",
		lead.Stage, mustJSON(analysis), mustJSON(tracking))
	raw, err := o.LLM.Invoke(ctx, llm.RoleStrategist, []llm.ChatMessage{{Role: "user", Content: prompt}})
	if err == nil {
		if s, perr := llm.ParseStrategy(raw); perr == nil {
			return s
		} else {
			err = perr
		}
	}
	log.Println("⚠️ strategist failed, using nurture default:", err)
	return &llm.Strategy{LeadScore: 50, ConversionProbability: 0.5, Strategy: "nurture", Fallback: true}
}

// write produces the outbound reply. If the writer role fails it falls
// back to the generic reply template; if that fails too the pipeline is
// exhausted.
func (o *Orchestrator) write(ctx context.Context, lead *model.Lead, text string, analysis *llm.Analysis, strategy *llm.Strategy) (string, error) {
	prompt := fmt.Sprintf("Customer wrote: %q\nIntent: %s, sentiment: %s\nStrategy: %s, lead score: %d\nWrite the reply.",
		text, analysis.Intent, analysis.Sentiment, strategy.Strategy, strategy.LeadScore)
	reply, err := o.LLM.Invoke(ctx, llm.RoleWriter, []llm.ChatMessage{{Role: "user", Content: prompt}})
	if err == nil && reply != "" {
		return reply, nil
	}
	log.Println("⚠️ writer failed, falling back to generic template:", err)

	tmpl, terr := o.Templates.GetByName(model.TemplateGenericReply)
	if terr != nil {
		return "", &appErrors.PipelineExhausted{LeadPhone: lead.Phone, Reason: "writer failed and no fallback template"}
	}
	fallback := RenderNamed(tmpl, map[string]string{"name": lead.Name})
	if fallback == "" {
		return "", &appErrors.PipelineExhausted{LeadPhone: lead.Phone, Reason: "fallback template rendered empty"}
	}
	return fallback, nil
}

func renderHistory(history []llm.ChatMessage) string {
	out := ""
	for _, m := range history {
		out += m.Role + ": " + m.Content + "\n"
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
