package dto

import (
	"time"

	"github.com/crmflow/crm-automation/internal/domain"
)

// FieldChangeRequest is one changed field of an ingested event.
type FieldChangeRequest struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// IngestEventRequest payload for POST /events.
type IngestEventRequest struct {
	ID         string                        `json:"id"`
	Type       domain.EventType              `json:"type"`
	EntityID   string                        `json:"entity_id"`
	EntityType domain.EntityType             `json:"entity_type"`
	Timestamp  *time.Time                    `json:"timestamp"`
	Changes    map[string]FieldChangeRequest `json:"changes"`
	Payload    map[string]any                `json:"payload"`
}

// DispatchResponse summarizes a dispatch.
type DispatchResponse struct {
	EventID         string `json:"event_id"`
	MatchedTriggers int    `json:"matched_triggers"`
	ActionsExecuted int    `json:"actions_executed"`
	TimelineEntryID string `json:"timeline_entry_id,omitempty"`
}

// TriggerResponse describes a registered trigger.
type TriggerResponse struct {
	Name       string              `json:"name"`
	Event      domain.EventType    `json:"event"`
	Conditions []domain.Condition  `json:"conditions"`
	Actions    []domain.ActionSpec `json:"actions"`
}

// ToEvent converts the request to a workflow event attributed to actorID.
func (r IngestEventRequest) ToEvent(actorID string) domain.WorkflowEvent {
	event := domain.WorkflowEvent{
		ID:         r.ID,
		Type:       r.Type,
		EntityID:   r.EntityID,
		EntityType: r.EntityType,
		ActorID:    actorID,
		Payload:    r.Payload,
	}
	if r.Timestamp != nil {
		event.Timestamp = *r.Timestamp
	}
	if len(r.Changes) > 0 {
		event.Changes = make(map[string]domain.FieldChange, len(r.Changes))
		for field, change := range r.Changes {
			event.Changes[field] = domain.FieldChange{Before: change.Before, After: change.After}
		}
	}
	return event
}
