package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/observability"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// EventService accepts workflow events from other CRM components and exposes
// the trigger registry and entity timelines.
type EventService struct {
	dispatcher events.Dispatcher
	recorder   *Recorder
	logger     *zap.Logger
}

// NewEventService creates the service.
func NewEventService(dispatcher events.Dispatcher, recorder *Recorder, logger *zap.Logger) *EventService {
	return &EventService{
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     observability.Named(logger, "events"),
	}
}

// Ingest validates event and dispatches it synchronously.
func (s *EventService) Ingest(ctx context.Context, event domain.WorkflowEvent) (events.DispatchResult, error) {
	details := map[string]any{}
	if strings.TrimSpace(string(event.Type)) == "" {
		details["type"] = "required"
	}
	if strings.TrimSpace(event.EntityID) == "" {
		details["entity_id"] = "required"
	}
	if !event.EntityType.Valid() {
		details["entity_type"] = "must be one of contact, deal, ticket, task"
	}
	if len(details) > 0 {
		return events.DispatchResult{}, apperrors.NewValidationError("invalid workflow event", details)
	}

	result, err := s.dispatcher.Dispatch(ctx, event)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	s.logger.Debug("event ingested",
		zap.String("event_type", string(event.Type)),
		zap.String("entity_id", event.EntityID),
		zap.Int("matched", result.Matched))
	return result, nil
}

// Triggers returns the registry keyed by event type.
func (s *EventService) Triggers() map[domain.EventType][]domain.Trigger {
	return s.dispatcher.All()
}

// Timeline returns entity history, newest first.
func (s *EventService) Timeline(ctx context.Context, entityID string, limit, offset int) ([]domain.TimelineEntry, error) {
	entries, err := s.recorder.History(ctx, entityID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}
