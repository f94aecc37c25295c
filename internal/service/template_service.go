// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/peakseason/trekbot-backend/internal/model"
	"github.com/peakseason/trekbot-backend/internal/repository"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// RenderNamed fills a stored template's declared variables from data.
// A declared variable missing from data renders as an empty string, so
// the output never carries an unresolved {placeholder}.
func RenderNamed(t *model.MessageTemplate, data map[string]string) string {
	filled := make(map[string]string, len(t.Variables))
	for _, v := range t.Variables {
		filled[v] = data[v]
	}
	return RenderTemplate(t.Body, filled)
}

type TemplateService struct {
	Repo repository.TemplateRepositoryInterface
}

// SeedDefaults upserts the built-in templates the core depends on.
func (s *TemplateService) SeedDefaults() (int, error) {
	defaults := []*model.MessageTemplate{
		{
			Name:      model.TemplateBalanceReminder,
			Category:  "payment",
			Body:      "Hi {name}! Friendly reminder: your trek balance of {balance_due} is still pending. Reply here and we'll sort it out in a minute.",
			Variables: []string{"name", "balance_due"},
			Active:    true,
		},
		{
			Name:      model.TemplateAbandonedCart,
			Category:  "lifecycle",
			Body:      "Hey {name}, you were this close to booking! Your spot is still held — want me to walk you through the last step?",
			Variables: []string{"name"},
			Active:    true,
		},
		{
			Name:      model.TemplateCampaignCritical,
			Category:  "campaign",
			Body:      "🔥 {name}, {trip_name} is almost sold out! Last spots at {price} ({discount} off) — book before {deadline}.",
			Variables: []string{"name", "trip_name", "price", "discount", "deadline"},
			Active:    true,
		},
		{
			Name:      model.TemplateCampaignModerate,
			Category:  "campaign",
			Body:      "{name}, {trip_name} is filling up fast. Grab your spot at {price} with {discount} off until {deadline}.",
			Variables: []string{"name", "trip_name", "price", "discount", "deadline"},
			Active:    true,
		},
		{
			Name:      model.TemplateCampaignNormal,
			Category:  "campaign",
			Body:      "Hi {name}! {trip_name} departures are open — from {price}, {discount} early-bird discount until {deadline}. Interested?",
			Variables: []string{"name", "trip_name", "price", "discount", "deadline"},
			Active:    true,
		},
		{
			Name:      model.TemplateGenericReply,
			Category:  "fallback",
			Body:      "Hi {name}! Thanks for reaching out — one of our trek experts is on it and will get back to you right away.",
			Variables: []string{"name"},
			Active:    true,
		},
	}

	seeded := 0
	for _, t := range defaults {
		if err := s.Repo.Upsert(t); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
