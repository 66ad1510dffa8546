package domain

import "time"

// TimelineEntry is a human-readable record of an event affecting an entity.
type TimelineEntry struct {
	ID          string         `json:"id"`
	EntityID    string         `json:"entity_id"`
	EntityType  EntityType     `json:"entity_type"`
	EventType   EventType      `json:"event_type"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
