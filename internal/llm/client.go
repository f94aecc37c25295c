package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
)

// Client invokes one OpenAI-compatible chat backend per pipeline role.
type Client struct {
	roles  map[string]RoleConfig
	client *http.Client
	stats  *UsageStats
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// NewClient creates a role client over the given backends. Stats must be
// shared with whatever exposes the usage dashboard.
func NewClient(roles map[string]RoleConfig, stats *UsageStats, opts ...Option) *Client {
	c := &Client{
		roles:  roles,
		client: &http.Client{Timeout: 60 * time.Second},
		stats:  stats,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- wire format ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Invoke sends the conversation to the role's backend and returns the raw
// completion text. Structured roles parse the text further with the
// Parse* helpers. The role's timeout bounds the whole round trip.
func (c *Client) Invoke(ctx context.Context, role string, history []ChatMessage) (string, error) {
	cfg, ok := c.roles[role]
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}

	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, ChatMessage{Role: "system", Content: cfg.Purpose})
	msgs = append(msgs, history...)

	payload, err := json.Marshal(chatRequest{Model: cfg.Model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &appErrors.ProviderError{Backend: role, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &appErrors.ProviderError{Backend: role, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &appErrors.ProviderError{Backend: role, Status: resp.StatusCode, Body: string(body)}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", &appErrors.MalformedResponseError{Backend: role, Err: err}
	}
	if len(cr.Choices) == 0 {
		return "", &appErrors.MalformedResponseError{Backend: role, Missing: []string{"choices"}}
	}

	c.stats.Record(role, cr.Usage)
	return cr.Choices[0].Message.Content, nil
}

// ParseAnalysis validates the analyzer's strict JSON output. Missing
// required fields fail here rather than leaking zero values upstream.
func ParseAnalysis(raw string) (*Analysis, error) {
	fields, err := decodeObject(RoleAnalyzer, raw)
	if err != nil {
		return nil, err
	}
	if missing := requireFields(fields, "intent", "sentiment", "buy_readiness"); len(missing) > 0 {
		return nil, &appErrors.MalformedResponseError{Backend: RoleAnalyzer, Missing: missing}
	}
	var a Analysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &a); err != nil {
		return nil, &appErrors.MalformedResponseError{Backend: RoleAnalyzer, Err: err}
	}
	return &a, nil
}

// ParseTracking validates the tracker's strict JSON output.
func ParseTracking(raw string) (*Tracking, error) {
	fields, err := decodeObject(RoleTracker, raw)
	if err != nil {
		return nil, err
	}
	if missing := requireFields(fields, "journey_stage", "risk_level", "next_action"); len(missing) > 0 {
		return nil, &appErrors.MalformedResponseError{Backend: RoleTracker, Missing: missing}
	}
	var t Tracking
	if err := json.Unmarshal([]byte(stripFences(raw)), &t); err != nil {
		return nil, &appErrors.MalformedResponseError{Backend: RoleTracker, Err: err}
	}
	return &t, nil
}

// ParseStrategy validates the strategist's strict JSON output.
func ParseStrategy(raw string) (*Strategy, error) {
	fields, err := decodeObject(RoleStrategist, raw)
	if err != nil {
		return nil, err
	}
	if missing := requireFields(fields, "lead_score", "conversion_probability", "strategy"); len(missing) > 0 {
		return nil, &appErrors.MalformedResponseError{Backend: RoleStrategist, Missing: missing}
	}
	var s Strategy
	if err := json.Unmarshal([]byte(stripFences(raw)), &s); err != nil {
		return nil, &appErrors.MalformedResponseError{Backend: RoleStrategist, Err: err}
	}
	return &s, nil
}

func decodeObject(role, raw string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil {
		return nil, &appErrors.MalformedResponseError{Backend: role, Err: err}
	}
	return fields, nil
}

func requireFields(fields map[string]json.RawMessage, names ...string) []string {
	missing := []string{}
	for _, n := range names {
		if _, ok := fields[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// stripFences tolerates models that wrap JSON in markdown code fences.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
