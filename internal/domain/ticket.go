package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the SLA monitor should ignore tickets in this status.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// SLA tracks the resolution deadline of a ticket.
type SLA struct {
	DueDate    time.Time  `json:"due_date"`
	Breached   bool       `json:"breached"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string         `json:"id"`
	ExternalKey     string         `json:"ticket_id"`
	Subject         string         `json:"subject"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Priority        TicketPriority `json:"priority"`
	Status          TicketStatus   `json:"status"`
	AssignedTo      string         `json:"assigned_to"`
	ContactID       string         `json:"contact_id"`
	OrganizationID  string         `json:"organization_id"`
	SLA             SLA            `json:"sla"`
	ResolutionNotes string         `json:"resolution_notes"`
	Attachments     []string       `json:"attachments"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	// Version increases with every Update and guards read-modify-write cycles.
	Version int64 `json:"version"`
}

// Snapshot returns the persisted fields keyed the way audit entries store them.
func (t *Ticket) Snapshot() map[string]any {
	attachments := make([]string, len(t.Attachments))
	copy(attachments, t.Attachments)
	return map[string]any{
		"id":               t.ID,
		"ticket_id":        t.ExternalKey,
		"subject":          t.Subject,
		"description":      t.Description,
		"category":         t.Category,
		"priority":         string(t.Priority),
		"status":           string(t.Status),
		"assigned_to":      t.AssignedTo,
		"contact_id":       t.ContactID,
		"organization_id":  t.OrganizationID,
		"sla_due_date":     t.SLA.DueDate,
		"sla_breached":     t.SLA.Breached,
		"resolution_notes": t.ResolutionNotes,
		"attachments":      attachments,
		"created_at":       t.CreatedAt,
		"updated_at":       t.UpdatedAt,
	}
}

// Clone returns a deep copy so callers can diff before/after states.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Attachments != nil {
		cp.Attachments = append([]string(nil), t.Attachments...)
	}
	if t.SLA.ResolvedAt != nil {
		resolved := *t.SLA.ResolvedAt
		cp.SLA.ResolvedAt = &resolved
	}
	return &cp
}
