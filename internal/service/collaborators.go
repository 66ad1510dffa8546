package service

import (
	"context"
	"time"
)

// Notification is an in-app message for a user.
type Notification struct {
	UserID   string `json:"user_id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
}

// TaskRequest asks the task system to create a follow-up task.
type TaskRequest struct {
	Title      string     `json:"title"`
	Details    string     `json:"details,omitempty"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

// Email is an outbound email.
type Email struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Body     string         `json:"body"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// MeetingRequest asks the calendar system to schedule a meeting.
type MeetingRequest struct {
	Title           string     `json:"title"`
	Attendees       []string   `json:"attendees"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	EntityID        string     `json:"entity_id,omitempty"`
}

// AssignmentNotice tells a user they now own an entity.
type AssignmentNotice struct {
	UserID     string `json:"user_id"`
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// DealUpdate propagates contact changes to the contact's deals.
type DealUpdate struct {
	ContactID string         `json:"contact_id"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NotificationSender delivers in-app notifications.
type NotificationSender interface {
	Send(ctx context.Context, notification Notification) error
}

// TaskCreator creates tasks and returns the new task id.
type TaskCreator interface {
	CreateTask(ctx context.Context, task TaskRequest) (string, error)
}

// EmailSender sends email.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) error
}

// MeetingScheduler books meetings and returns the meeting id.
type MeetingScheduler interface {
	ScheduleMeeting(ctx context.Context, meeting MeetingRequest) (string, error)
}

// AssignmentNotifier announces ownership changes.
type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, notice AssignmentNotice) error
}

// DealUpdater updates deals related to a contact.
type DealUpdater interface {
	UpdateRelatedDeals(ctx context.Context, update DealUpdate) error
}
