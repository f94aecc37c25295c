package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Pipeline roles, one independently configured backend per role.
const (
	RoleAnalyzer   = "analyzer"
	RoleTracker    = "tracker"
	RoleStrategist = "strategist"
	RoleWriter     = "writer"
)

// RoleConfig selects the backend for one pipeline role.
type RoleConfig struct {
	Name    string
	Model   string
	Purpose string // system prompt
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ChatMessage is one turn of conversation history handed to a role.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Usage is the token accounting one invocation reports.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Analysis is the analyzer role's structured output.
type Analysis struct {
	Intent       string `json:"intent"`
	Sentiment    string `json:"sentiment"`
	BuyReadiness int    `json:"buy_readiness"` // 0-10
	Fallback     bool   `json:"fallback,omitempty"`
}

// Tracking is the context tracker role's structured output.
type Tracking struct {
	JourneyStage string `json:"journey_stage"`
	RiskLevel    int    `json:"risk_level"` // 0-100
	NextAction   string `json:"next_action"`
	Fallback     bool   `json:"fallback,omitempty"`
}

// Strategy is the strategist role's structured output.
type Strategy struct {
	LeadScore             int     `json:"lead_score"` // 0-100
	ConversionProbability float64 `json:"conversion_probability"`
	Strategy              string  `json:"strategy"` // create_urgency, nurture, close
	Fallback              bool    `json:"fallback,omitempty"`
}

// LoadRolesFromEnv builds the four role configs. Each role can override
// the shared model, base URL and key via ROLE_<NAME>_* variables.
func LoadRolesFromEnv() map[string]RoleConfig {
	roles := map[string]string{
		RoleAnalyzer:   "Classify customer intent, sentiment and buy-readiness. Answer strict JSON with keys intent, sentiment, buy_readiness.",
		RoleTracker:    "Track the customer journey. Answer strict JSON with keys journey_stage, risk_level, next_action.",
		RoleStrategist: "Score the lead and pick a sales strategy. Answer strict JSON with keys lead_score, conversion_probability, strategy.",
		RoleWriter:     "Write the next short, friendly sales reply as plain text.",
	}

	timeout := 30 * time.Second
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		var secs int
		if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	out := make(map[string]RoleConfig, len(roles))
	for name, purpose := range roles {
		prefix := "ROLE_" + strings.ToUpper(name)
		out[name] = RoleConfig{
			Name:    name,
			Model:   envOr(prefix+"_MODEL", os.Getenv("LLM_MODEL")),
			Purpose: purpose,
			BaseURL: envOr(prefix+"_BASE_URL", envOr("LLM_BASE_URL", "https://api.openai.com/v1")),
			APIKey:  envOr(prefix+"_API_KEY", os.Getenv("LLM_API_KEY")),
			Timeout: timeout,
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
