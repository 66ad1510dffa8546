package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/observability"
)

var errCollaboratorMissing = errors.New("no collaborator configured for action")

// ActionExecutor performs the side effects of matched triggers. Failures are
// logged and counted, never returned to the dispatcher.
type ActionExecutor struct {
	notifications NotificationSender
	tasks         TaskCreator
	email         EmailSender
	meetings      MeetingScheduler
	assignments   AssignmentNotifier
	deals         DealUpdater
	retry         RetryPolicy
	timeout       time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// ExecutorDependencies bundles collaborators for the executor.
type ExecutorDependencies struct {
	Notifications NotificationSender
	Tasks         TaskCreator
	Email         EmailSender
	Meetings      MeetingScheduler
	Assignments   AssignmentNotifier
	Deals         DealUpdater
	Retry         RetryPolicy
	Timeout       time.Duration
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

var _ events.ActionExecutor = (*ActionExecutor)(nil)

// NewActionExecutor builds the executor.
func NewActionExecutor(deps ExecutorDependencies) *ActionExecutor {
	policy := deps.Retry
	if policy == nil {
		policy = NoRetry()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ActionExecutor{
		notifications: deps.Notifications,
		tasks:         deps.Tasks,
		email:         deps.Email,
		meetings:      deps.Meetings,
		assignments:   deps.Assignments,
		deals:         deps.Deals,
		retry:         policy,
		timeout:       deps.Timeout,
		metrics:       deps.Metrics,
		logger:        observability.Named(deps.Logger, "actions"),
		now:           now,
	}
}

// Execute runs action for event. It never panics and never returns an error;
// the outcome is visible only in logs and metrics.
func (e *ActionExecutor) Execute(ctx context.Context, action domain.ActionSpec, event domain.WorkflowEvent) {
	params := ResolveParams(action.Params, event)
	start := e.now()

	err := e.retry.Do(ctx, func(ctx context.Context) error {
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		return e.run(ctx, action.Type, params, event)
	})

	fields := []zap.Field{
		zap.String("action_type", string(action.Type)),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("entity_id", event.EntityID),
		zap.Duration("duration", e.now().Sub(start)),
	}
	if err != nil {
		e.metrics.RecordAction(string(action.Type), false)
		e.logger.Error("action failed", append(fields, zap.Any("params", params), zap.Error(err))...)
		return
	}
	e.metrics.RecordAction(string(action.Type), true)
	e.logger.Info("action executed", fields...)
}

// run converts a panic inside a collaborator into an error.
func (e *ActionExecutor) run(ctx context.Context, actionType domain.ActionType, params map[string]any, event domain.WorkflowEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = permanent(fmt.Errorf("action %s panicked: %v", actionType, r))
		}
	}()

	switch actionType {
	case domain.ActionSendNotification:
		if e.notifications == nil {
			return permanent(fmt.Errorf("%w: %s", errCollaboratorMissing, actionType))
		}
		return e.notifications.Send(ctx, Notification{
			UserID:   stringParam(params, "userId", "user_id"),
			Type:     stringParam(params, "type"),
			Title:    stringParam(params, "title"),
			Message:  stringParam(params, "message"),
			EntityID: firstNonEmpty(stringParam(params, "entityId", "entity_id"), event.EntityID),
		})
	case domain.ActionCreateTask:
		if e.tasks == nil {
			return permanent(fmt.Errorf("%w: %s", errCollaboratorMissing, actionType))
		}
		task := TaskRequest{
			Title:      stringParam(params, "title"),
			Details:    stringParam(params, "description", "details"),
			AssigneeID: stringParam(params, "assignee", "assigneeId", "assignee_id", "userId"),
			EntityID:   firstNonEmpty(stringParam(params, "entityId", "entity_id"), event.EntityID),
			EntityType: firstNonEmpty(stringParam(params, "entityType", "entity_type"), string(event.EntityType)),
		}
		if hours, ok := intParam(params, "dueInHours", "due_in_hours"); ok {
			due := e.now().Add(time.Duration(hours) * time.Hour)
			task.DueAt = &due
		} else if days, ok := intParam(params, "dueInDays", "due_in_days"); ok {
			due := e.now().Add(time.Duration(days) * 24 * time.Hour)
			task.DueAt = &due
		}
		id, err := e.tasks.CreateTask(ctx, task)
		if err != nil {
			return err
		}
		e.logger.Debug("task created", zap.String("task_id", id), zap.String("entity_id", task.EntityID))
		return nil
	case domain.ActionSendEmail:
		if e.email == nil {
			return permanent(fmt.Errorf("%w: %s", errCollaboratorMissing, actionType))
		}
		email := Email{
			To:       stringParam(params, "to", "email"),
			Subject:  stringParam(params, "subject"),
			Body:     stringParam(params, "body", "message"),
			Template: stringParam(params, "template"),
		}
		if data, ok := params["data"].(map[string]any); ok {
			email.Data = data
		}
		if email.To == "" {
			return permanent(errors.New("send_email requires a recipient"))
		}
		return e.email.SendEmail(ctx, email)
	case domain.ActionScheduleMeeting:
		if e.meetings == nil {
			return permanent(fmt.Errorf("%w: %s", errCollaboratorMissing, actionType))
		}
		meeting := MeetingRequest{
			Title:     stringParam(params, "title"),
			Attendees: stringsParam(params, "attendees"),
			EntityID:  firstNonEmpty(stringParam(params, "entityId", "entity_id"), event.EntityID),
		}
		if minutes, ok := intParam(params, "durationMinutes", "duration_minutes"); ok {
			meeting.DurationMinutes = minutes
		} else {
			meeting.DurationMinutes = 30
		}
		if raw := stringParam(params, "startAt", "start_at"); raw != "" {
			if at, err := time.Parse(time.RFC3339, raw); err == nil {
				meeting.StartAt = &at
			}
		}
		id, err := e.meetings.ScheduleMeeting(ctx, meeting)
		if err != nil {
			return err
		}
		e.logger.Debug("meeting scheduled", zap.String("meeting_id", id))
		return nil
	case domain.ActionAssignUser:
		if e.assignments == nil {
			return permanent(fmt.Errorf("%w: %s", errCollaboratorMissing, actionType))
		}
		notice := AssignmentNotice{
			UserID:     stringParam(params, "userId", "user_id"),
			EntityID:   firstNonEmpty(stringParam(params, "entityId", "entity_id"), event.EntityID),
			EntityType: firstNonEmpty(stringParam(params, "entityType", "entity_type"), string(event.EntityType)),
		}
		if notice.UserID == "" {
			return permanent(errors.New("assign_user requires a user"))
		}
		return e.assignments.NotifyAssignment(ctx, notice)
	case domain.ActionUpdateRelatedDeals:
		if e.deals == nil {
			return permanent(fmt.Errorf("%w: %s", errCollaboratorMissing, actionType))
		}
		update := DealUpdate{
			ContactID: firstNonEmpty(stringParam(params, "contactId", "contact_id"), event.EntityID),
			Fields:    changedAfterValues(event),
		}
		return e.deals.UpdateRelatedDeals(ctx, update)
	default:
		return permanent(fmt.Errorf("unsupported action type %q", actionType))
	}
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// ResolveParams substitutes {{field}} placeholders in string params with values
// looked up on the event. A param that is exactly one placeholder keeps the
// looked-up value's type; unknown fields render as the empty string.
func ResolveParams(params map[string]any, event domain.WorkflowEvent) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		out[key] = resolveValue(value, event)
	}
	return out
}

func resolveValue(value any, event domain.WorkflowEvent) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, event)
	case map[string]any:
		return ResolveParams(v, event)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveValue(item, event)
		}
		return out
	default:
		return value
	}
}

func resolveString(s string, event domain.WorkflowEvent) any {
	if m := placeholder.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		val, ok := events.Lookup(event, s[m[2]:m[3]])
		if !ok || val == nil {
			return ""
		}
		return val
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		field := placeholder.FindStringSubmatch(match)[1]
		val, ok := events.Lookup(event, field)
		if !ok || val == nil {
			return ""
		}
		return fmt.Sprint(val)
	})
}

func stringParam(params map[string]any, keys ...string) string {
	for _, key := range keys {
		val, ok := params[key]
		if !ok || val == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(val)); s != "" {
			return s
		}
	}
	return ""
}

func intParam(params map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := params[key].(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func stringsParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

func changedAfterValues(event domain.WorkflowEvent) map[string]any {
	if len(event.Changes) == 0 {
		return nil
	}
	out := make(map[string]any, len(event.Changes))
	for field, change := range event.Changes {
		out[field] = change.After
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
