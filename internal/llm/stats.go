package llm

import "sync"

// RoleUsage accumulates per-role call and token counts.
type RoleUsage struct {
	Calls            int `json:"calls"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// UsageStats is the process-wide usage counter service. Increments and
// reset share one mutex so a reset under load never leaves a role entry
// half-written.
type UsageStats struct {
	mu    sync.Mutex
	roles map[string]*RoleUsage
}

func NewUsageStats() *UsageStats {
	return &UsageStats{roles: make(map[string]*RoleUsage)}
}

// Record adds one invocation's usage to the role's counters.
func (s *UsageStats) Record(role string, u Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ru, ok := s.roles[role]
	if !ok {
		ru = &RoleUsage{}
		s.roles[role] = ru
	}
	ru.Calls++
	ru.PromptTokens += u.PromptTokens
	ru.CompletionTokens += u.CompletionTokens
}

// Snapshot returns a read-only copy for the stats dashboard.
func (s *UsageStats) Snapshot() map[string]RoleUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]RoleUsage, len(s.roles))
	for role, ru := range s.roles {
		out[role] = *ru
	}
	return out
}

// Reset zeroes all counters. In-flight increments landing around a reset
// may be lost or kept; the structure itself stays consistent.
func (s *UsageStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = make(map[string]*RoleUsage)
}
