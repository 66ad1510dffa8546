package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/repository"
)

// Recorder appends audit and timeline entries and serves them back newest first.
type Recorder struct {
	audits   repository.AuditLogRepository
	timeline repository.TimelineRepository
	logger   *zap.Logger
	now      func() time.Time
}

// RecorderDependencies bundles repositories for the recorder.
type RecorderDependencies struct {
	AuditRepo    repository.AuditLogRepository
	TimelineRepo repository.TimelineRepository
	Logger       *zap.Logger
	Now          func() time.Time
}

var _ events.TimelineRecorder = (*Recorder)(nil)

// NewRecorder constructs the recorder.
func NewRecorder(deps RecorderDependencies) *Recorder {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		audits:   deps.AuditRepo,
		timeline: deps.TimelineRepo,
		logger:   observability.Named(deps.Logger, "recorder"),
		now:      now,
	}
}

// RecordAudit appends an audit entry, filling in id and timestamp when absent.
func (r *Recorder) RecordAudit(ctx context.Context, entry *domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if entry.Changes == nil {
		entry.Changes = &domain.AuditChanges{}
	}
	if entry.Changes.Before == nil {
		entry.Changes.Before = map[string]any{}
	}
	if entry.Changes.After == nil {
		entry.Changes.After = map[string]any{}
	}
	if err := r.audits.Create(ctx, entry); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// RecordTimeline appends a timeline entry.
func (r *Recorder) RecordTimeline(ctx context.Context, entry *domain.TimelineEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if err := r.timeline.Append(ctx, entry); err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	return nil
}

// History returns the timeline of entityID, newest first.
func (r *Recorder) History(ctx context.Context, entityID string, limit, offset int) ([]domain.TimelineEntry, error) {
	entries, err := r.timeline.ListByEntity(ctx, entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// AuditTrail returns the audit entries of ticketID, newest first.
func (r *Recorder) AuditTrail(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLog, error) {
	entries, err := r.audits.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
