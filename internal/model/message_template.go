// internal/model/message_template.go
package model

import "time"

type MessageTemplate struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Body      string    `db:"body" json:"body"`
	Variables []string  `db:"variables" json:"variables"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Template names the core depends on.
const (
	TemplateBalanceReminder  = "balance_reminder"
	TemplateAbandonedCart    = "abandoned_reengage"
	TemplateCampaignCritical = "campaign_critical"
	TemplateCampaignModerate = "campaign_moderate"
	TemplateCampaignNormal   = "campaign_normal"
	TemplateGenericReply     = "generic_reply"
)
