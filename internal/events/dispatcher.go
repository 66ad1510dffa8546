package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/observability"
)

// ActionExecutor runs a single action. Implementations swallow their own
// failures; the dispatcher never sees an error from an action.
type ActionExecutor interface {
	Execute(ctx context.Context, action domain.ActionSpec, event domain.WorkflowEvent)
}

// TimelineRecorder appends timeline entries.
type TimelineRecorder interface {
	RecordTimeline(ctx context.Context, entry *domain.TimelineEntry) error
}

// EventSink mirrors dispatched events to an external consumer.
type EventSink interface {
	PublishEvent(ctx context.Context, event domain.WorkflowEvent) error
}

// DispatchResult summarizes one dispatch.
type DispatchResult struct {
	Matched  int
	Actions  int
	Timeline *domain.TimelineEntry
}

// Dispatcher holds triggers per event type and routes events to them.
type Dispatcher interface {
	Register(eventType domain.EventType, trigger domain.Trigger)
	Triggers(eventType domain.EventType) []domain.Trigger
	All() map[domain.EventType][]domain.Trigger
	Dispatch(ctx context.Context, event domain.WorkflowEvent) (DispatchResult, error)
}

// DispatcherDependencies bundles collaborators for the dispatcher.
type DispatcherDependencies struct {
	Executor ActionExecutor
	Timeline TimelineRecorder
	Sink     EventSink
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// inMemoryDispatcher keeps triggers in a map of ordered lists.
type inMemoryDispatcher struct {
	mu       sync.RWMutex
	triggers map[domain.EventType][]domain.Trigger

	executor ActionExecutor
	timeline TimelineRecorder
	sink     EventSink
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher instance.
func NewDispatcher(deps DispatcherDependencies) Dispatcher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &inMemoryDispatcher{
		triggers: make(map[domain.EventType][]domain.Trigger),
		executor: deps.Executor,
		timeline: deps.Timeline,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		logger:   observability.Named(deps.Logger, "dispatcher"),
		now:      now,
	}
}

// Register appends trigger to the list for eventType. Duplicates are kept and fire independently.
func (d *inMemoryDispatcher) Register(eventType domain.EventType, trigger domain.Trigger) {
	if trigger.Event == "" {
		trigger.Event = eventType
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggers[eventType] = append(d.triggers[eventType], trigger)
}

// Triggers returns a copy of the triggers registered for eventType.
func (d *inMemoryDispatcher) Triggers(eventType domain.EventType) []domain.Trigger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Trigger(nil), d.triggers[eventType]...)
}

// All returns a copy of the full registry.
func (d *inMemoryDispatcher) All() map[domain.EventType][]domain.Trigger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[domain.EventType][]domain.Trigger, len(d.triggers))
	for eventType, list := range d.triggers {
		out[eventType] = append([]domain.Trigger(nil), list...)
	}
	return out
}

// Dispatch evaluates every trigger registered for the event type in registration
// order and runs the actions of each matching trigger sequentially. Exactly one
// timeline entry is appended per call, whether or not anything matched. The only
// error returned is a failure to write that entry.
func (d *inMemoryDispatcher) Dispatch(ctx context.Context, event domain.WorkflowEvent) (DispatchResult, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}

	var result DispatchResult
	for _, trigger := range d.Triggers(event.Type) {
		if !Evaluate(trigger.Conditions, event) {
			continue
		}
		result.Matched++
		d.logger.Debug("trigger matched",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("trigger", trigger.Name))
		for _, action := range trigger.Actions {
			if d.executor == nil {
				d.logger.Warn("no action executor configured; skipping action",
					zap.String("action_type", string(action.Type)))
				continue
			}
			d.executor.Execute(ctx, action, event)
			result.Actions++
		}
	}
	d.metrics.RecordDispatch(string(event.Type), result.Matched)

	entry := &domain.TimelineEntry{
		EntityID:    event.EntityID,
		EntityType:  event.EntityType,
		EventType:   event.Type,
		Description: describe(event, result.Matched),
		Timestamp:   event.Timestamp,
		Metadata: map[string]any{
			"event_id":         event.ID,
			"actor_id":         event.ActorID,
			"matched_triggers": result.Matched,
			"actions_executed": result.Actions,
			"changed_fields":   changedFields(event),
		},
	}
	if d.timeline != nil {
		if err := d.timeline.RecordTimeline(ctx, entry); err != nil {
			d.logger.Error("record timeline entry",
				zap.String("event_id", event.ID),
				zap.String("entity_id", event.EntityID),
				zap.Error(err))
			return result, fmt.Errorf("record timeline: %w", err)
		}
	}
	result.Timeline = entry

	if d.sink != nil {
		if err := d.sink.PublishEvent(ctx, event); err != nil {
			d.logger.Warn("mirror workflow event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	return result, nil
}

func describe(event domain.WorkflowEvent, matched int) string {
	entity := string(event.EntityType)
	if entity == "" {
		entity = "entity"
	}
	desc := fmt.Sprintf("%s on %s %s", event.Type, entity, event.EntityID)
	if fields := changedFields(event); len(fields) > 0 {
		desc += fmt.Sprintf(" (%d field(s) changed)", len(fields))
	}
	if matched > 0 {
		desc += fmt.Sprintf("; %d automation trigger(s) fired", matched)
	}
	return desc
}

func changedFields(event domain.WorkflowEvent) []string {
	fields := make([]string, 0, len(event.Changes))
	for field := range event.Changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
