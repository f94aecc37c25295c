package service_test

import (
	"sort"
	"sync"
	"time"

	appErrors "github.com/peakseason/trekbot-backend/internal/errors"
	"github.com/peakseason/trekbot-backend/internal/model"
	"github.com/peakseason/trekbot-backend/internal/repository"
)

// In-memory repositories shared by the service tests. The message repo
// mirrors the store's claim semantics under a mutex so concurrency
// properties can be exercised without a database.

type MockLeadRepo struct {
	mu     sync.Mutex
	nextID int
	leads  map[int]*model.Lead
}

func NewMockLeadRepo() *MockLeadRepo {
	return &MockLeadRepo{leads: map[int]*model.Lead{}}
}

func (m *MockLeadRepo) GetByPhone(phone string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.Phone == phone {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockLeadRepo) GetByID(id int) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, appErrors.NewLeadNotFound("unknown")
	}
	cp := *l
	return &cp, nil
}

func (m *MockLeadRepo) Create(l *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	if l.Stage == "" {
		l.Stage = model.StageNew
	}
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *MockLeadRepo) Update(l *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *MockLeadRepo) Touch(id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		if l.LastContactAt == nil || l.LastContactAt.Before(at) {
			l.LastContactAt = &at
		}
	}
	return nil
}

func (m *MockLeadRepo) UpdateStage(id int, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		l.Stage = stage
	}
	return nil
}

func (m *MockLeadRepo) ListAbandonedEngaged() ([]*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Lead{}
	for _, l := range m.sorted() {
		if l.Stage == model.StageEngaged {
			if _, ok := l.Metadata[model.MetaAbandonedAt]; ok {
				cp := *l
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *MockLeadRepo) ListQualifiedForCampaign(contactedSince time.Time) ([]*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	warm := map[string]bool{
		model.StageInterested: true,
		model.StageQualified:  true,
		model.StageEngaged:    true,
	}
	out := []*model.Lead{}
	for _, l := range m.sorted() {
		if l.Phone == "" || !l.IsWhatsapp || !warm[l.Stage] {
			continue
		}
		if l.LastContactAt == nil || l.LastContactAt.Before(contactedSince) {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockLeadRepo) ListStaleAdvancePaid(olderThan time.Time, limit int) ([]*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Lead{}
	for _, l := range m.sorted() {
		if len(out) >= limit {
			break
		}
		if l.Stage != model.StageAdvancePaid || l.LastContactAt == nil {
			continue
		}
		if l.LastContactAt.Before(olderThan) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockLeadRepo) sorted() []*model.Lead {
	ids := make([]int, 0, len(m.leads))
	for id := range m.leads {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*model.Lead, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.leads[id])
	}
	return out
}

var _ repository.LeadRepositoryInterface = (*MockLeadRepo)(nil)

type MockMessageRepo struct {
	mu     sync.Mutex
	nextID int
	msgs   map[int]*model.OutboundMessage
}

func NewMockMessageRepo() *MockMessageRepo {
	return &MockMessageRepo{msgs: map[int]*model.OutboundMessage{}}
}

func (m *MockMessageRepo) Enqueue(msg *model.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	if msg.Status == "" {
		msg.Status = model.MessageQueued
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	m.msgs[msg.ID] = &cp
	return nil
}

func (m *MockMessageRepo) GetByID(id int) (*model.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (m *MockMessageRepo) ScheduleAndClaim(now time.Time, limit int, reminders []repository.ReminderDraft) ([]*model.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range reminders {
		if m.hasPendingReminderLocked(d.LeadID) {
			continue
		}
		m.nextID++
		tmpl := model.TemplateBalanceReminder
		leadID := d.LeadID
		m.msgs[m.nextID] = &model.OutboundMessage{
			ID:           m.nextID,
			Recipient:    d.Recipient,
			TemplateName: &tmpl,
			Body:         d.Body,
			Status:       model.MessageQueued,
			LeadID:       &leadID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	claimed := []*model.OutboundMessage{}
	for _, id := range m.sortedIDs() {
		if len(claimed) >= limit {
			break
		}
		msg := m.msgs[id]
		if !msg.Eligible(now) {
			continue
		}
		msg.Status = model.MessageSending
		msg.UpdatedAt = now
		cp := *msg
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (m *MockMessageRepo) hasPendingReminderLocked(leadID int) bool {
	for _, msg := range m.msgs {
		if msg.LeadID != nil && *msg.LeadID == leadID &&
			msg.TemplateName != nil && *msg.TemplateName == model.TemplateBalanceReminder &&
			(msg.Status == model.MessageQueued || msg.Status == model.MessageSending) {
			return true
		}
	}
	return false
}

func (m *MockMessageRepo) MarkSent(id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok {
		msg.Status = model.MessageSent
		msg.SentAt = &at
		msg.LastError = ""
		msg.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MockMessageRepo) MarkFailed(id int, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok {
		msg.Status = model.MessageFailed
		msg.LastError = errText
		msg.Retries++
		msg.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MockMessageRepo) RequeueFailed(id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok && msg.Status == model.MessageFailed {
		msg.Status = model.MessageQueued
		msg.ScheduledFor = &at
		msg.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MockMessageRepo) ReclaimStale(before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.Status == model.MessageSending && msg.UpdatedAt.Before(before) {
			msg.Status = model.MessageQueued
			msg.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MockMessageRepo) CountByStatus() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"queued": 0, "sending": 0, "sent": 0, "failed": 0}
	for _, msg := range m.msgs {
		stats[msg.Status]++
	}
	return stats, nil
}

// All returns a snapshot of every stored message, id order.
func (m *MockMessageRepo) All() []*model.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.OutboundMessage{}
	for _, id := range m.sortedIDs() {
		cp := *m.msgs[id]
		out = append(out, &cp)
	}
	return out
}

func (m *MockMessageRepo) sortedIDs() []int {
	ids := make([]int, 0, len(m.msgs))
	for id := range m.msgs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

var _ repository.OutboundMessageRepositoryInterface = (*MockMessageRepo)(nil)

type MockEventRepo struct {
	mu     sync.Mutex
	events []*model.LeadEvent
}

func (m *MockEventRepo) Append(e *model.LeadEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockEventRepo) ListRecent(leadID, limit int) ([]*model.LeadEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.LeadEvent{}
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].LeadID == leadID {
			cp := *m.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ByType returns the lead's events of one type, oldest first.
func (m *MockEventRepo) ByType(leadID int, eventType string) []*model.LeadEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.LeadEvent{}
	for _, e := range m.events {
		if e.LeadID == leadID && e.Type == eventType {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

var _ repository.LeadEventRepositoryInterface = (*MockEventRepo)(nil)

type MockTaskRepo struct {
	mu     sync.Mutex
	nextID int
	tasks  []*model.Task
}

func (m *MockTaskRepo) CreateIfAbsent(t *model.Task) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tasks {
		if existing.LeadID == t.LeadID && existing.Type == t.Type && existing.Status == model.TaskOpen {
			return false, nil
		}
	}
	m.nextID++
	t.ID = m.nextID
	if t.Status == "" {
		t.Status = model.TaskOpen
	}
	cp := *t
	m.tasks = append(m.tasks, &cp)
	return true, nil
}

func (m *MockTaskRepo) HasOpen(leadID int, taskType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.LeadID == leadID && t.Type == taskType && t.Status == model.TaskOpen {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockTaskRepo) Close(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			t.Status = model.TaskClosed
		}
	}
	return nil
}

func (m *MockTaskRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

var _ repository.TaskRepositoryInterface = (*MockTaskRepo)(nil)

type MockTripRepo struct {
	Trips []*model.Trip
}

func (m *MockTripRepo) GetByID(id int) (*model.Trip, error) {
	for _, t := range m.Trips {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTripRepo) ListCampaignEligible(horizon time.Time) ([]*model.Trip, error) {
	out := []*model.Trip{}
	for _, t := range m.Trips {
		if t.Status != "available" && t.Status != "promoted" {
			continue
		}
		if t.DepartureDate != nil && t.DepartureDate.After(horizon) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

var _ repository.TripRepositoryInterface = (*MockTripRepo)(nil)

type MockTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]*model.MessageTemplate
}

func NewMockTemplateRepo() *MockTemplateRepo {
	return &MockTemplateRepo{templates: map[string]*model.MessageTemplate{}}
}

func (m *MockTemplateRepo) GetByName(name string) (*model.MessageTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[name]
	if !ok || !t.Active {
		return nil, appErrors.NewTemplateNotFound(name)
	}
	cp := *t
	return &cp, nil
}

func (m *MockTemplateRepo) Upsert(t *model.MessageTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.templates[t.Name] = &cp
	return nil
}

func (m *MockTemplateRepo) ListActive() ([]*model.MessageTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.MessageTemplate{}
	for _, t := range m.templates {
		if t.Active {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ repository.TemplateRepositoryInterface = (*MockTemplateRepo)(nil)
