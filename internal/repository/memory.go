package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crmflow/crm-automation/internal/domain"
)

// MemoryStore backs every repository with process memory. It is used when no
// POSTGRES_DSN is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	tickets  map[string]*domain.Ticket
	audits   []domain.AuditLog
	timeline []domain.TimelineEntry
	rules    []domain.AssignmentRule
	position int64
	sla      *domain.SLAConfig
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]*domain.Ticket)}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// AuditLogs exposes the store as an AuditLogRepository.
func (s *MemoryStore) AuditLogs() AuditLogRepository { return memoryAudits{s} }

// Timeline exposes the store as a TimelineRepository.
func (s *MemoryStore) Timeline() TimelineRepository { return memoryTimeline{s} }

// AssignmentRules exposes the store as an AssignmentRuleRepository.
func (s *MemoryStore) AssignmentRules() AssignmentRuleRepository { return memoryRules{s} }

// SLAConfig exposes the store as an SLAConfigRepository.
func (s *MemoryStore) SLAConfig() SLAConfigRepository { return memorySLA{s} }

type memoryTickets struct{ s *MemoryStore }

func (m memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (m memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	current, ok := m.s.tickets[ticket.ID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if current.Version != ticket.Version {
		return domain.ErrTicketConflict
	}
	updated := ticket.Clone()
	updated.SLA = current.SLA
	updated.ExternalKey = current.ExternalKey
	updated.CreatedAt = current.CreatedAt
	updated.Version = current.Version + 1
	m.s.tickets[ticket.ID] = updated
	ticket.Version = updated.Version
	return nil
}

func (m memoryTickets) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tickets[id]; !ok {
		return domain.ErrTicketNotFound
	}
	delete(m.s.tickets, id)
	return nil
}

func (m memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	ticket, ok := m.s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return ticket.Clone(), nil
}

func (m memoryTickets) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	m.s.mu.RLock()
	var matched []domain.Ticket
	for _, ticket := range m.s.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, *ticket.Clone())
		}
	}
	m.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), nil
}

func (m memoryTickets) ListBreachCandidates(_ context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	m.s.mu.RLock()
	var matched []domain.Ticket
	for _, ticket := range m.s.tickets {
		if !ticket.Status.Terminal() && !ticket.SLA.Breached && ticket.SLA.DueDate.Before(now) {
			matched = append(matched, *ticket.Clone())
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SLA.DueDate.Before(matched[j].SLA.DueDate)
	})
	return page(matched, limit, 0), nil
}

func (m memoryTickets) MarkBreached(_ context.Context, id string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ticket, ok := m.s.tickets[id]
	if !ok || ticket.SLA.Breached || ticket.Status.Terminal() {
		return false, nil
	}
	ticket.SLA.Breached = true
	ticket.UpdatedAt = at
	return true, nil
}

func (m memoryTickets) MarkResolved(_ context.Context, id string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ticket, ok := m.s.tickets[id]
	if !ok || ticket.SLA.ResolvedAt != nil {
		return false, nil
	}
	resolved := at
	ticket.SLA.ResolvedAt = &resolved
	return true, nil
}

func matchesFilter(t *domain.Ticket, f TicketFilter) bool {
	if len(f.Statuses) > 0 && !containsValue(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsValue(f.Priorities, t.Priority) {
		return false
	}
	if f.Category != nil && *f.Category != t.Category {
		return false
	}
	if f.AssignedTo != nil && *f.AssignedTo != t.AssignedTo {
		return false
	}
	if f.ContactID != nil && *f.ContactID != t.ContactID {
		return false
	}
	if f.OrganizationID != nil && *f.OrganizationID != t.OrganizationID {
		return false
	}
	if f.Breached != nil && *f.Breached != t.SLA.Breached {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Subject), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = normalizeLimit(limit), normalizeOffset(offset)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type memoryAudits struct{ s *MemoryStore }

func (m memoryAudits) Create(_ context.Context, entry *domain.AuditLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.audits = append(m.s.audits, *entry)
	return nil
}

func (m memoryAudits) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.AuditLog, error) {
	m.s.mu.RLock()
	var result []domain.AuditLog
	for i := len(m.s.audits) - 1; i >= 0; i-- {
		if m.s.audits[i].TicketID == ticketID {
			result = append(result, m.s.audits[i])
		}
	}
	m.s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return page(result, limit, offset), nil
}

type memoryTimeline struct{ s *MemoryStore }

func (m memoryTimeline) Append(_ context.Context, entry *domain.TimelineEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.timeline = append(m.s.timeline, *entry)
	return nil
}

func (m memoryTimeline) ListByEntity(_ context.Context, entityID string, limit, offset int) ([]domain.TimelineEntry, error) {
	m.s.mu.RLock()
	var result []domain.TimelineEntry
	for i := len(m.s.timeline) - 1; i >= 0; i-- {
		if m.s.timeline[i].EntityID == entityID {
			result = append(result, m.s.timeline[i])
		}
	}
	m.s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return page(result, limit, offset), nil
}

type memoryRules struct{ s *MemoryStore }

func (m memoryRules) Create(_ context.Context, rule *domain.AssignmentRule) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.position++
	rule.Position = m.s.position
	m.s.rules = append(m.s.rules, *rule)
	return nil
}

func (m memoryRules) List(_ context.Context) ([]domain.AssignmentRule, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return append([]domain.AssignmentRule(nil), m.s.rules...), nil
}

func (m memoryRules) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, rule := range m.s.rules {
		if rule.ID == id {
			m.s.rules = append(m.s.rules[:i], m.s.rules[i+1:]...)
			return nil
		}
	}
	return domain.ErrRuleNotFound
}

type memorySLA struct{ s *MemoryStore }

func (m memorySLA) Get(_ context.Context) (*domain.SLAConfig, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	if m.s.sla == nil {
		return nil, nil
	}
	cfg := *m.s.sla
	return &cfg, nil
}

func (m memorySLA) Save(_ context.Context, cfg domain.SLAConfig) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.sla = &cfg
	return nil
}
