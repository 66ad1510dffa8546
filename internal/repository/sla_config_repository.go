package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmflow/crm-automation/internal/domain"
)

// SLAConfigRepository persists the single SLA configuration row.
// Get returns nil, nil when nothing has been saved yet.
type SLAConfigRepository interface {
	Get(ctx context.Context) (*domain.SLAConfig, error)
	Save(ctx context.Context, cfg domain.SLAConfig) error
}

type slaConfigRepository struct {
	pool *pgxpool.Pool
}

// NewSLAConfigRepository builds repository.
func NewSLAConfigRepository(pool *pgxpool.Pool) SLAConfigRepository {
	return &slaConfigRepository{pool: pool}
}

func (r *slaConfigRepository) Get(ctx context.Context) (*domain.SLAConfig, error) {
	const query = `SELECT critical_hours, high_hours, medium_hours, low_hours FROM sla_config WHERE id = 1`
	var cfg domain.SLAConfig
	err := r.pool.QueryRow(ctx, query).Scan(&cfg.Critical, &cfg.High, &cfg.Medium, &cfg.Low)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sla config: %w", err)
	}
	return &cfg, nil
}

func (r *slaConfigRepository) Save(ctx context.Context, cfg domain.SLAConfig) error {
	const query = `
        INSERT INTO sla_config (id, critical_hours, high_hours, medium_hours, low_hours, updated_at)
        VALUES (1, $1, $2, $3, $4, NOW())
        ON CONFLICT (id) DO UPDATE SET
            critical_hours = EXCLUDED.critical_hours,
            high_hours = EXCLUDED.high_hours,
            medium_hours = EXCLUDED.medium_hours,
            low_hours = EXCLUDED.low_hours,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.pool.Exec(ctx, query, cfg.Critical, cfg.High, cfg.Medium, cfg.Low); err != nil {
		return fmt.Errorf("save sla config: %w", err)
	}
	return nil
}
