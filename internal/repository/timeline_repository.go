package repository

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmflow/crm-automation/internal/domain"
)

// TimelineRepository persists timeline entries. Entries sharing a timestamp
// come back in reverse insertion order.
type TimelineRepository interface {
	Append(ctx context.Context, entry *domain.TimelineEntry) error
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.TimelineEntry, error)
}

type timelineRepository struct {
	pool *pgxpool.Pool
}

// NewTimelineRepository builds repository.
func NewTimelineRepository(pool *pgxpool.Pool) TimelineRepository {
	return &timelineRepository{pool: pool}
}

func (r *timelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode timeline metadata: %w", err)
	}

	query, args, err := psql.
		Insert("timeline_entries").
		Columns("id", "entity_id", "entity_type", "event_type", "description", "metadata", "created_at").
		Values(entry.ID, entry.EntityID, entry.EntityType, entry.EventType, entry.Description, metadata, entry.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append timeline entry: %w", err)
	}
	return nil
}

func (r *timelineRepository) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.TimelineEntry, error) {
	query, args, err := psql.
		Select("id", "entity_id", "entity_type", "event_type", "description", "metadata", "created_at").
		From("timeline_entries").
		Where(sq.Eq{"entity_id": entityID}).
		OrderBy("created_at DESC", "seq DESC").
		Limit(uint64(normalizeLimit(limit))).
		Offset(uint64(normalizeOffset(offset))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var result []domain.TimelineEntry
	for rows.Next() {
		var (
			entry    domain.TimelineEntry
			metadata []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.EntityID,
			&entry.EntityType,
			&entry.EventType,
			&entry.Description,
			&metadata,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode timeline metadata: %w", err)
			}
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
