package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/events"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/repository"
)

const (
	sweepKey       = "sla-sweep"
	sweepBatchSize = 200
	systemActor    = "system"
)

// SLAService computes due dates and flags tickets that miss them.
type SLAService struct {
	mu  sync.RWMutex
	cfg domain.SLAConfig

	store      repository.SLAConfigRepository
	tickets    repository.TicketRepository
	recorder   *Recorder
	dispatcher events.Dispatcher
	locker     repository.Locker
	lockTTL    time.Duration
	sweeps     singleflight.Group
	batchSize  int
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Config     domain.SLAConfig
	ConfigRepo repository.SLAConfigRepository
	TicketRepo repository.TicketRepository
	Recorder   *Recorder
	Dispatcher events.Dispatcher
	Locker     repository.Locker
	LockTTL    time.Duration
	BatchSize  int
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewSLAService validates the initial windows and builds the service.
func NewSLAService(deps SLADependencies) (*SLAService, error) {
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = sweepBatchSize
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &SLAService{
		cfg:        deps.Config,
		store:      deps.ConfigRepo,
		tickets:    deps.TicketRepo,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		lockTTL:    lockTTL,
		batchSize:  batch,
		metrics:    deps.Metrics,
		logger:     observability.Named(deps.Logger, "sla"),
		now:        now,
	}, nil
}

// LoadStoredConfig replaces the in-memory windows with the persisted ones, if any.
func (s *SLAService) LoadStoredConfig(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	stored, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load sla config: %w", err)
	}
	if stored == nil {
		return nil
	}
	if err := stored.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = *stored
	s.mu.Unlock()
	s.logger.Info("loaded stored SLA configuration", zap.Any("config", *stored))
	return nil
}

// Config returns the active windows.
func (s *SLAService) Config() domain.SLAConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Calculate returns the SLA for a ticket created now with priority.
func (s *SLAService) Calculate(priority domain.TicketPriority) (domain.SLA, error) {
	hours, err := s.Config().Hours(priority)
	if err != nil {
		return domain.SLA{}, err
	}
	return domain.SLA{DueDate: s.now().Add(time.Duration(hours) * time.Hour)}, nil
}

// UpdateConfig applies patch and persists the result. Existing tickets keep their due dates.
func (s *SLAService) UpdateConfig(ctx context.Context, patch domain.SLAConfigPatch) (domain.SLAConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := patch.Apply(s.cfg)
	if err := next.Validate(); err != nil {
		return s.cfg, err
	}
	if s.store != nil {
		if err := s.store.Save(ctx, next); err != nil {
			return s.cfg, err
		}
	}
	s.cfg = next
	s.logger.Info("SLA configuration updated", zap.Any("config", next))
	return next, nil
}

// MarkResolved stamps the ticket's SLA resolution time once.
func (s *SLAService) MarkResolved(ctx context.Context, ticketID string) error {
	updated, err := s.tickets.MarkResolved(ctx, ticketID, s.now())
	if err != nil {
		return err
	}
	if updated {
		s.logger.Debug("SLA resolved", zap.String("ticket_id", ticketID))
	}
	return nil
}

// CheckBreaches flags every open ticket past its due date and returns how many
// were newly breached. Concurrent callers in this process share one sweep;
// with a Locker configured only one instance sweeps at a time.
func (s *SLAService) CheckBreaches(ctx context.Context) (int, error) {
	v, err, shared := s.sweeps.Do(sweepKey, func() (any, error) {
		return s.sweep(ctx)
	})
	if shared {
		s.logger.Debug("joined in-flight SLA sweep")
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *SLAService) sweep(ctx context.Context) (int, error) {
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, s.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			s.logger.Debug("SLA sweep held by another instance")
			return 0, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release sweep lock", zap.Error(err))
			}
		}()
	}

	breached := 0
	for {
		now := s.now()
		candidates, err := s.tickets.ListBreachCandidates(ctx, now, s.batchSize)
		if err != nil {
			s.metrics.RecordSweep(breached)
			return breached, fmt.Errorf("list breach candidates: %w", err)
		}
		flipped := 0
		for i := range candidates {
			ok, err := s.breach(ctx, &candidates[i], now)
			if err != nil {
				s.logger.Error("mark SLA breach",
					zap.String("ticket_id", candidates[i].ID),
					zap.Error(err))
				continue
			}
			if ok {
				flipped++
			}
		}
		breached += flipped
		if len(candidates) < s.batchSize || flipped == 0 {
			break
		}
	}

	s.metrics.RecordSweep(breached)
	if breached > 0 {
		s.logger.Info("SLA sweep complete", zap.Int("breached", breached))
	}
	return breached, nil
}

// breach flips one ticket. The conditional update makes the flip happen at most once.
func (s *SLAService) breach(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, error) {
	if ticket.Status.Terminal() || ticket.SLA.Breached || !ticket.SLA.DueDate.Before(now) {
		return false, nil
	}
	ok, err := s.tickets.MarkBreached(ctx, ticket.ID, now)
	if err != nil || !ok {
		return false, err
	}
	ticket.SLA.Breached = true
	ticket.UpdatedAt = now

	if s.recorder != nil {
		err := s.recorder.RecordAudit(ctx, &domain.AuditLog{
			TicketID: ticket.ID,
			UserID:   systemActor,
			Action:   domain.AuditActionSLABreach,
			Changes: &domain.AuditChanges{
				Before: map[string]any{"sla_breached": false},
				After:  map[string]any{"sla_breached": true},
			},
			Timestamp: now,
		})
		if err != nil {
			s.logger.Error("audit write failed",
				zap.Bool("audit_failed", true),
				zap.String("ticket_id", ticket.ID),
				zap.String("action", string(domain.AuditActionSLABreach)),
				zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		_, err := s.dispatcher.Dispatch(ctx, domain.WorkflowEvent{
			Type:       domain.EventSLABreached,
			EntityID:   ticket.ID,
			EntityType: domain.EntityTicket,
			ActorID:    systemActor,
			Timestamp:  now,
			Changes: map[string]domain.FieldChange{
				"sla_breached": {Before: false, After: true},
			},
			Payload: ticket.Snapshot(),
		})
		if err != nil {
			s.logger.Warn("dispatch sla_breached", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return true, nil
}
