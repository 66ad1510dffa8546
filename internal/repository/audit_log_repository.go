package repository

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmflow/crm-automation/internal/domain"
)

// AuditLogRepository stores append-only audit entries. Listing is newest first.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	var changes []byte
	if entry.Changes != nil {
		encoded, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("encode audit changes: %w", err)
		}
		changes = encoded
	}

	query, args, err := psql.
		Insert("audit_logs").
		Columns("id", "ticket_id", "user_id", "action", "changes", "created_at").
		Values(entry.ID, entry.TicketID, entry.UserID, entry.Action, changes, entry.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func (r *auditLogRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.AuditLog, error) {
	query, args, err := psql.
		Select("id", "ticket_id", "user_id", "action", "changes", "created_at").
		From("audit_logs").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("created_at DESC", "seq DESC").
		Limit(uint64(normalizeLimit(limit))).
		Offset(uint64(normalizeOffset(offset))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var result []domain.AuditLog
	for rows.Next() {
		var (
			entry   domain.AuditLog
			changes []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&changes,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(changes) > 0 {
			entry.Changes = &domain.AuditChanges{}
			if err := json.Unmarshal(changes, entry.Changes); err != nil {
				return nil, fmt.Errorf("decode audit changes: %w", err)
			}
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
