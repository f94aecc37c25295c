// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/peakseason/trekbot-backend/internal/controller"
	"github.com/peakseason/trekbot-backend/internal/db"
	"github.com/peakseason/trekbot-backend/internal/handler"
	"github.com/peakseason/trekbot-backend/internal/llm"
	"github.com/peakseason/trekbot-backend/internal/queue"
	"github.com/peakseason/trekbot-backend/internal/repository"
	"github.com/peakseason/trekbot-backend/internal/sender"
	"github.com/peakseason/trekbot-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	// Init DB
	db.Init()
	q := queue.NewInMemoryQueue()

	leadRepo := &repository.LeadRepository{DB: db.DB}
	msgRepo := &repository.OutboundMessageRepository{DB: db.DB}
	eventRepo := &repository.LeadEventRepository{DB: db.DB}
	taskRepo := &repository.TaskRepository{DB: db.DB}
	tripRepo := &repository.TripRepository{DB: db.DB}
	templateRepo := &repository.TemplateRepository{DB: db.DB}

	stats := llm.NewUsageStats()
	roleClient := llm.NewClient(llm.LoadRolesFromEnv(), stats)

	dispatcher := &service.DispatcherService{
		MsgRepo:   msgRepo,
		LeadRepo:  leadRepo,
		EventRepo: eventRepo,
		Templates: templateRepo,
		Sender:    sender.LogSender{},
	}
	queue.StartOutboundSendSubscriber(q, dispatcher)

	orchestrator := &service.Orchestrator{
		LLM:       roleClient,
		LeadRepo:  leadRepo,
		EventRepo: eventRepo,
		MsgRepo:   msgRepo,
		Templates: templateRepo,
		Queue:     q,
	}

	lifecycle := &service.LifecycleService{
		LeadRepo:  leadRepo,
		TaskRepo:  taskRepo,
		MsgRepo:   msgRepo,
		Templates: templateRepo,
		TripRepo:  tripRepo,
	}

	engagementController := &controller.EngagementController{
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Lifecycle:    lifecycle,
	}

	adminHandler := &handler.AdminHandler{
		Templates: &service.TemplateService{Repo: templateRepo},
		Stats:     stats,
		LeadRepo:  leadRepo,
		EventRepo: eventRepo,
		MsgRepo:   msgRepo,
	}

	r := chi.NewRouter()

	// Engagement routes
	r.Post("/inbound", engagementController.Inbound)
	r.Post("/dispatch/run", engagementController.RunDispatch)
	r.Post("/lifecycle/scan", engagementController.RunScans)

	// Admin routes
	r.Post("/templates/seed", adminHandler.SeedTemplatesHandler)
	r.Get("/stats/usage", adminHandler.UsageStatsHandler)
	r.Post("/stats/usage/reset", adminHandler.ResetUsageHandler)
	r.Get("/leads/{phone}", adminHandler.GetLeadHandler)

	log.Println("🚀 Server running on :8080")
	log.Fatal(http.ListenAndServe(":8080", r))
}
