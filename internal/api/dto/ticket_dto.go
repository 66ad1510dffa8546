package dto

import (
	"time"

	"github.com/crmflow/crm-automation/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject        string                `json:"subject"`
	Description    string                `json:"description"`
	Category       string                `json:"category"`
	Priority       domain.TicketPriority `json:"priority"`
	AssignedTo     string                `json:"assigned_to"`
	ContactID      string                `json:"contact_id"`
	OrganizationID string                `json:"organization_id"`
	Attachments    []string              `json:"attachments"`
}

// UpdateTicketRequest payload; omitted fields are unchanged.
type UpdateTicketRequest struct {
	Subject         *string                `json:"subject"`
	Description     *string                `json:"description"`
	Category        *string                `json:"category"`
	Priority        *domain.TicketPriority `json:"priority"`
	Status          *domain.TicketStatus   `json:"status"`
	ContactID       *string                `json:"contact_id"`
	OrganizationID  *string                `json:"organization_id"`
	ResolutionNotes *string                `json:"resolution_notes"`
	Attachments     *[]string              `json:"attachments"`
}

// AssignTicketRequest payload. An empty assignee asks the resolver to choose.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// SLAResponse mirrors domain.SLA.
type SLAResponse struct {
	DueDate    time.Time  `json:"due_date"`
	Breached   bool       `json:"breached"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID              string                `json:"id"`
	TicketID        string                `json:"ticket_id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Category        string                `json:"category"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	AssignedTo      string                `json:"assigned_to"`
	ContactID       string                `json:"contact_id,omitempty"`
	OrganizationID  string                `json:"organization_id,omitempty"`
	SLA             SLAResponse           `json:"sla"`
	ResolutionNotes string                `json:"resolution_notes,omitempty"`
	Attachments     []string              `json:"attachments"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// AuditLogResponse represents an audit entry.
type AuditLogResponse struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Before    map[string]any `json:"before"`
	After     map[string]any `json:"after"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewTicketResponse maps a ticket for output.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return TicketResponse{
		ID:             t.ID,
		TicketID:       t.ExternalKey,
		Subject:        t.Subject,
		Description:    t.Description,
		Category:       t.Category,
		Priority:       t.Priority,
		Status:         t.Status,
		AssignedTo:     t.AssignedTo,
		ContactID:      t.ContactID,
		OrganizationID: t.OrganizationID,
		SLA: SLAResponse{
			DueDate:    t.SLA.DueDate,
			Breached:   t.SLA.Breached,
			ResolvedAt: t.SLA.ResolvedAt,
		},
		ResolutionNotes: t.ResolutionNotes,
		Attachments:     attachments,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// NewAuditLogResponse maps an audit entry for output.
func NewAuditLogResponse(entry domain.AuditLog) AuditLogResponse {
	resp := AuditLogResponse{
		ID:        entry.ID,
		TicketID:  entry.TicketID,
		UserID:    entry.UserID,
		Action:    string(entry.Action),
		Before:    map[string]any{},
		After:     map[string]any{},
		Timestamp: entry.Timestamp,
	}
	if entry.Changes != nil {
		if entry.Changes.Before != nil {
			resp.Before = entry.Changes.Before
		}
		if entry.Changes.After != nil {
			resp.After = entry.Changes.After
		}
	}
	return resp
}
