package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/observability"
)

// Sweeper flags overdue tickets and reports how many were newly breached.
type Sweeper interface {
	CheckBreaches(ctx context.Context) (int, error)
}

// SLAMonitor runs the breach sweep on a fixed interval.
type SLAMonitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewSLAMonitor builds a monitor.
func NewSLAMonitor(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *SLAMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SLAMonitor{
		sweeper:  sweeper,
		interval: interval,
		logger:   observability.Named(logger, "sla-monitor"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (m *SLAMonitor) Run(ctx context.Context) error {
	m.logger.Info("SLA monitor started", zap.Duration("interval", m.interval))
	m.tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("SLA monitor stopped")
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *SLAMonitor) tick(ctx context.Context) {
	breached, err := m.sweeper.CheckBreaches(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Error("SLA sweep failed", zap.Error(err))
		return
	}
	m.logger.Debug("SLA sweep finished", zap.Int("breached", breached))
}
