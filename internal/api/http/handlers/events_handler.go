package handlers

import (
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/crmflow/crm-automation/internal/api/dto"
	"github.com/crmflow/crm-automation/internal/auth"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/service"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// EventsHandler accepts workflow events and exposes triggers and timelines.
type EventsHandler struct {
	service *service.EventService
}

// NewEventsHandler constructs handler.
func NewEventsHandler(eventService *service.EventService) *EventsHandler {
	return &EventsHandler{service: eventService}
}

// Ingest POST /events.
func (h *EventsHandler) Ingest(c *fiber.Ctx) error {
	var req dto.IngestEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	event := req.ToEvent(auth.ActorID(c))
	result, err := h.service.Ingest(c.UserContext(), event)
	if err != nil {
		return err
	}
	resp := dto.DispatchResponse{
		MatchedTriggers: result.Matched,
		ActionsExecuted: result.Actions,
	}
	if result.Timeline != nil {
		resp.TimelineEntryID = result.Timeline.ID
		if id, ok := result.Timeline.Metadata["event_id"].(string); ok {
			resp.EventID = id
		}
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": resp})
}

// ListTriggers GET /triggers.
func (h *EventsHandler) ListTriggers(c *fiber.Ctx) error {
	registry := h.service.Triggers()
	eventTypes := make([]string, 0, len(registry))
	for eventType := range registry {
		eventTypes = append(eventTypes, string(eventType))
	}
	sort.Strings(eventTypes)

	items := make([]dto.TriggerResponse, 0)
	for _, eventType := range eventTypes {
		for _, trigger := range registry[domain.EventType(eventType)] {
			items = append(items, dto.TriggerResponse{
				Name:       trigger.Name,
				Event:      domain.EventType(eventType),
				Conditions: trigger.Conditions,
				Actions:    trigger.Actions,
			})
		}
	}
	return c.JSON(fiber.Map{"data": items})
}

// Timeline GET /timeline/:entityId.
func (h *EventsHandler) Timeline(c *fiber.Ctx) error {
	limit, offset := parsePage(c)
	entries, err := h.service.Timeline(c.UserContext(), c.Params("entityId"), limit, offset)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.TimelineEntry{}
	}
	return c.JSON(fiber.Map{"data": entries})
}
