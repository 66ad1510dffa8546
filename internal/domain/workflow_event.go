package domain

import "time"

// EventType identifies a business event that triggers may react to.
type EventType string

const (
	EventContactCreated   EventType = "contact_created"
	EventContactUpdate    EventType = "contact_update"
	EventDealUpdate       EventType = "deal_update"
	EventDealStageChanged EventType = "deal_stage_changed"
	EventTicketCreated    EventType = "ticket_created"
	EventTicketUpdated    EventType = "ticket_updated"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketDeleted    EventType = "ticket_deleted"
	EventSLABreached      EventType = "sla_breached"
)

// EntityType enumerates the CRM records events can refer to.
type EntityType string

const (
	EntityContact EntityType = "contact"
	EntityDeal    EntityType = "deal"
	EntityTicket  EntityType = "ticket"
	EntityTask    EntityType = "task"
)

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	switch e {
	case EntityContact, EntityDeal, EntityTicket, EntityTask:
		return true
	}
	return false
}

// FieldChange holds the before/after value of a single field.
type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// WorkflowEvent is emitted by business operations and consumed once by the dispatcher.
// Treat it as immutable after construction.
type WorkflowEvent struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	EntityID   string                 `json:"entity_id"`
	EntityType EntityType             `json:"entity_type"`
	ActorID    string                 `json:"actor_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Changes    map[string]FieldChange `json:"changes,omitempty"`
	Payload    map[string]any         `json:"payload,omitempty"`
}
