package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/repository"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// PriorityChangeHook observes priority edits on existing tickets.
type PriorityChangeHook func(ctx context.Context, ticket *domain.Ticket, previous domain.TicketPriority)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets        repository.TicketRepository
	recorder       *Recorder
	sla            *SLAService
	assignment     *AssignmentService
	dispatcher     events.Dispatcher
	priorityChange PriorityChangeHook
	logger         *zap.Logger
	now            func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	Recorder       *Recorder
	SLA            *SLAService
	Assignment     *AssignmentService
	Dispatcher     events.Dispatcher
	PriorityChange PriorityChangeHook
	Logger         *zap.Logger
	Now            func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject        string
	Description    string
	Category       string
	Priority       domain.TicketPriority
	AssignedTo     string
	ContactID      string
	OrganizationID string
	Attachments    []string
}

// TicketUpdateInput is a partial update; nil fields are left alone.
type TicketUpdateInput struct {
	Subject         *string
	Description     *string
	Category        *string
	Priority        *domain.TicketPriority
	Status          *domain.TicketStatus
	ContactID       *string
	OrganizationID  *string
	ResolutionNotes *string
	Attachments     *[]string
}

// maxWriteAttempts bounds how often a read-modify-write is replayed after a
// concurrent change to the same ticket.
const maxWriteAttempts = 3

// auditExcluded lists snapshot keys that never count as a change.
var auditExcluded = map[string]bool{
	"id":         true,
	"ticket_id":  true,
	"created_at": true,
	"updated_at": true,
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:        deps.TicketRepo,
		recorder:       deps.Recorder,
		sla:            deps.SLA,
		assignment:     deps.Assignment,
		dispatcher:     deps.Dispatcher,
		priorityChange: deps.PriorityChange,
		logger:         observability.Named(deps.Logger, "tickets"),
		now:            now,
	}
}

// CreateTicket validates input, computes the SLA, assigns an owner, persists
// the ticket, audits it and dispatches ticket_created. If only the audit or
// timeline write fails the ticket is returned together with an AUDIT_FAILED error.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError(domain.ErrSubjectRequired.Error(), map[string]any{"subject": "required"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	sla, err := s.sla.Calculate(priority)
	if err != nil {
		return nil, apperrors.MapError(fmt.Errorf("calculate SLA: %w", err))
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		ExternalKey:    generateTicketKey(),
		Subject:        subject,
		Description:    strings.TrimSpace(input.Description),
		Category:       strings.TrimSpace(input.Category),
		Priority:       priority,
		Status:         domain.TicketStatusOpen,
		AssignedTo:     strings.TrimSpace(input.AssignedTo),
		ContactID:      input.ContactID,
		OrganizationID: input.OrganizationID,
		SLA:            sla,
		Attachments:    append([]string{}, input.Attachments...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if ticket.AssignedTo == "" {
		assignee, err := s.assignment.Resolve(ctx, ticket)
		if err != nil {
			return nil, apperrors.MapError(fmt.Errorf("assign ticket: %w", err))
		}
		ticket.AssignedTo = assignee
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("key", ticket.ExternalKey),
		zap.String("priority", string(ticket.Priority)),
		zap.String("assigned_to", ticket.AssignedTo))

	auditErr := s.audit(ctx, &domain.AuditLog{
		TicketID: ticket.ID,
		UserID:   actorID,
		Action:   domain.AuditActionCreate,
		Changes: &domain.AuditChanges{
			Before: map[string]any{},
			After:  ticket.Snapshot(),
		},
	})

	timelineErr := s.publishEvent(ctx, domain.WorkflowEvent{
		Type:       domain.EventTicketCreated,
		EntityID:   ticket.ID,
		EntityType: domain.EntityTicket,
		ActorID:    actorID,
		Payload:    ticket.Snapshot(),
	})
	return ticket, firstError(auditErr, timelineErr)
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching filter, most recently updated first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateTicket applies input. A no-op update writes nothing. Moving to
// resolved stamps the SLA resolution time; priority edits do not move the due date.
// When another writer changes the ticket first, input is reapplied to the fresh copy.
func (s *TicketService) UpdateTicket(ctx context.Context, actorID, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	var (
		current *domain.Ticket
		before  *domain.Ticket
		changes map[string]domain.FieldChange
	)
	for attempt := 1; ; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, id)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		before = ticket.Clone()

		if err := applyUpdate(ticket, input); err != nil {
			return nil, err
		}
		changes = diffSnapshots(before.Snapshot(), ticket.Snapshot())
		if len(changes) == 0 {
			return ticket, nil
		}

		ticket.UpdatedAt = s.now()
		err = s.tickets.Update(ctx, ticket)
		if err == nil {
			current = ticket
			break
		}
		if !errors.Is(err, domain.ErrTicketConflict) || attempt == maxWriteAttempts {
			return nil, apperrors.MapError(err)
		}
		s.logger.Debug("ticket changed concurrently; reapplying update",
			zap.String("ticket_id", id),
			zap.Int("attempt", attempt))
	}

	if _, ok := changes["status"]; ok && current.Status == domain.TicketStatusResolved {
		if err := s.sla.MarkResolved(ctx, current.ID); err != nil {
			s.logger.Warn("mark SLA resolved", zap.String("ticket_id", current.ID), zap.Error(err))
		} else if fresh, err := s.tickets.GetByID(ctx, current.ID); err == nil {
			current = fresh
		}
	}
	if _, ok := changes["priority"]; ok {
		// TODO: recompute SLA.DueDate once product decides whether escalations reset the clock.
		s.logger.Info("priority changed; SLA due date kept",
			zap.String("ticket_id", current.ID),
			zap.String("from", string(before.Priority)),
			zap.String("to", string(current.Priority)))
		if s.priorityChange != nil {
			s.priorityChange(ctx, current, before.Priority)
		}
	}

	beforeFields := make(map[string]any, len(changes))
	afterFields := make(map[string]any, len(changes))
	for field, change := range changes {
		beforeFields[field] = change.Before
		afterFields[field] = change.After
	}
	auditErr := s.audit(ctx, &domain.AuditLog{
		TicketID: current.ID,
		UserID:   actorID,
		Action:   domain.AuditActionUpdate,
		Changes:  &domain.AuditChanges{Before: beforeFields, After: afterFields},
	})

	timelineErr := s.publishEvent(ctx, domain.WorkflowEvent{
		Type:       domain.EventTicketUpdated,
		EntityID:   current.ID,
		EntityType: domain.EntityTicket,
		ActorID:    actorID,
		Changes:    changes,
		Payload:    current.Snapshot(),
	})
	return current, firstError(auditErr, timelineErr)
}

// AssignTicket hands the ticket to assigneeID, or to the resolver's choice when empty.
// The resolver is consulted once even if the write has to be replayed.
func (s *TicketService) AssignTicket(ctx context.Context, actorID, id, assigneeID string) (*domain.Ticket, error) {
	assigneeID = strings.TrimSpace(assigneeID)
	var (
		ticket   *domain.Ticket
		previous string
	)
	for attempt := 1; ; attempt++ {
		var err error
		ticket, err = s.tickets.GetByID(ctx, id)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if assigneeID == "" {
			assigneeID, err = s.assignment.Resolve(ctx, ticket)
			if err != nil {
				return nil, apperrors.MapError(fmt.Errorf("assign ticket: %w", err))
			}
		}
		previous = ticket.AssignedTo
		if previous == assigneeID {
			return ticket, nil
		}

		ticket.AssignedTo = assigneeID
		ticket.UpdatedAt = s.now()
		err = s.tickets.Update(ctx, ticket)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrTicketConflict) || attempt == maxWriteAttempts {
			return nil, apperrors.MapError(err)
		}
		s.logger.Debug("ticket changed concurrently; reapplying assignment",
			zap.String("ticket_id", id),
			zap.Int("attempt", attempt))
	}

	auditErr := s.audit(ctx, &domain.AuditLog{
		TicketID: ticket.ID,
		UserID:   actorID,
		Action:   domain.AuditActionAssign,
		Changes: &domain.AuditChanges{
			Before: map[string]any{"assigned_to": previous},
			After:  map[string]any{"assigned_to": assigneeID},
		},
	})

	timelineErr := s.publishEvent(ctx, domain.WorkflowEvent{
		Type:       domain.EventTicketAssigned,
		EntityID:   ticket.ID,
		EntityType: domain.EntityTicket,
		ActorID:    actorID,
		Changes: map[string]domain.FieldChange{
			"assigned_to": {Before: previous, After: assigneeID},
		},
		Payload: ticket.Snapshot(),
	})
	return ticket, firstError(auditErr, timelineErr)
}

// DeleteTicket removes the ticket. Its audit trail and timeline are kept.
func (s *TicketService) DeleteTicket(ctx context.Context, actorID, id string) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}

	auditErr := s.audit(ctx, &domain.AuditLog{
		TicketID: ticket.ID,
		UserID:   actorID,
		Action:   domain.AuditActionDelete,
		Changes: &domain.AuditChanges{
			Before: ticket.Snapshot(),
			After:  map[string]any{},
		},
	})

	timelineErr := s.publishEvent(ctx, domain.WorkflowEvent{
		Type:       domain.EventTicketDeleted,
		EntityID:   ticket.ID,
		EntityType: domain.EntityTicket,
		ActorID:    actorID,
		Payload:    ticket.Snapshot(),
	})
	return firstError(auditErr, timelineErr)
}

// AuditTrail lists audit entries for a ticket, newest first. Deleted tickets keep theirs.
func (s *TicketService) AuditTrail(ctx context.Context, id string, limit, offset int) ([]domain.AuditLog, error) {
	entries, err := s.recorder.AuditTrail(ctx, id, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func applyUpdate(ticket *domain.Ticket, input TicketUpdateInput) error {
	details := map[string]any{}
	if input.Subject != nil {
		if subject := strings.TrimSpace(*input.Subject); subject == "" {
			details["subject"] = "required"
		} else {
			ticket.Subject = subject
		}
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		ticket.Category = strings.TrimSpace(*input.Category)
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			details["priority"] = domain.ErrInvalidPriority.Error()
		} else {
			ticket.Priority = *input.Priority
		}
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			details["status"] = domain.ErrInvalidStatus.Error()
		} else {
			ticket.Status = *input.Status
		}
	}
	if input.ContactID != nil {
		ticket.ContactID = *input.ContactID
	}
	if input.OrganizationID != nil {
		ticket.OrganizationID = *input.OrganizationID
	}
	if input.ResolutionNotes != nil {
		ticket.ResolutionNotes = *input.ResolutionNotes
	}
	if input.Attachments != nil {
		ticket.Attachments = append([]string{}, (*input.Attachments)...)
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket update", details)
	}
	return nil
}

func diffSnapshots(before, after map[string]any) map[string]domain.FieldChange {
	changes := map[string]domain.FieldChange{}
	for field, next := range after {
		if auditExcluded[field] {
			continue
		}
		prev := before[field]
		if reflect.DeepEqual(prev, next) {
			continue
		}
		changes[field] = domain.FieldChange{Before: prev, After: next}
	}
	return changes
}

// audit writes entry and converts a failure into AUDIT_FAILED. The mutation it
// describes has already been applied.
func (s *TicketService) audit(ctx context.Context, entry *domain.AuditLog) error {
	if s.recorder == nil {
		return nil
	}
	if err := s.recorder.RecordAudit(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.Bool("audit_failed", true),
			zap.String("ticket_id", entry.TicketID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return apperrors.NewAuditFailed(entry.TicketID, err)
	}
	return nil
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// publishEvent dispatches event. The dispatcher only fails when the timeline
// entry could not be written; that is reported as AUDIT_FAILED.
func (s *TicketService) publishEvent(ctx context.Context, event domain.WorkflowEvent) error {
	if s.dispatcher == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if _, err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.logger.Error("timeline write failed",
			zap.Bool("audit_failed", true),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.EntityID),
			zap.Error(err))
		return apperrors.NewAuditFailed(event.EntityID, err)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
