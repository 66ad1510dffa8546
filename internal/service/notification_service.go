package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/observability"
)

// Outbox hands action requests to downstream CRM systems.
type Outbox interface {
	PublishAction(ctx context.Context, kind, key string, payload any) error
}

// NotificationService fulfils every action collaborator by writing a request
// to the outbox. Without an outbox the requests are only logged.
type NotificationService struct {
	outbox Outbox
	logger *zap.Logger
}

var (
	_ NotificationSender = (*NotificationService)(nil)
	_ TaskCreator        = (*NotificationService)(nil)
	_ EmailSender        = (*NotificationService)(nil)
	_ MeetingScheduler   = (*NotificationService)(nil)
	_ AssignmentNotifier = (*NotificationService)(nil)
	_ DealUpdater        = (*NotificationService)(nil)
)

// NewNotificationService creates the service.
func NewNotificationService(outbox Outbox, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		outbox: outbox,
		logger: observability.Named(logger, "outbox"),
	}
}

// Send publishes an in-app notification.
func (n *NotificationService) Send(ctx context.Context, notification Notification) error {
	if notification.UserID == "" {
		n.logger.Debug("notification without recipient dropped",
			zap.String("type", notification.Type),
			zap.String("entity_id", notification.EntityID))
		return nil
	}
	return n.publish(ctx, "notification", notification.UserID, notification)
}

// CreateTask publishes a task request and returns its id.
func (n *NotificationService) CreateTask(ctx context.Context, task TaskRequest) (string, error) {
	id := uuid.NewString()
	payload := struct {
		ID string `json:"id"`
		TaskRequest
	}{ID: id, TaskRequest: task}
	if err := n.publish(ctx, "task", task.EntityID, payload); err != nil {
		return "", err
	}
	return id, nil
}

// SendEmail publishes an email request.
func (n *NotificationService) SendEmail(ctx context.Context, email Email) error {
	return n.publish(ctx, "email", email.To, email)
}

// ScheduleMeeting publishes a meeting request and returns its id.
func (n *NotificationService) ScheduleMeeting(ctx context.Context, meeting MeetingRequest) (string, error) {
	id := uuid.NewString()
	payload := struct {
		ID string `json:"id"`
		MeetingRequest
	}{ID: id, MeetingRequest: meeting}
	if err := n.publish(ctx, "meeting", meeting.EntityID, payload); err != nil {
		return "", err
	}
	return id, nil
}

// NotifyAssignment publishes an ownership notice.
func (n *NotificationService) NotifyAssignment(ctx context.Context, notice AssignmentNotice) error {
	return n.publish(ctx, "assignment", notice.EntityID, notice)
}

// UpdateRelatedDeals publishes a deal sync request for the contact.
func (n *NotificationService) UpdateRelatedDeals(ctx context.Context, update DealUpdate) error {
	if update.ContactID == "" {
		return fmt.Errorf("update related deals: contact id is required")
	}
	return n.publish(ctx, "deal_update", update.ContactID, update)
}

func (n *NotificationService) publish(ctx context.Context, kind, key string, payload any) error {
	n.logger.Info(kind, zap.String("key", key), zap.Any("payload", payload))
	if n.outbox == nil {
		return nil
	}
	if err := n.outbox.PublishAction(ctx, kind, key, payload); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}
