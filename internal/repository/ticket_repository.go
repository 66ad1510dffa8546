package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmflow/crm-automation/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Category       *string
	AssignedTo     *string
	ContactID      *string
	OrganizationID *string
	Breached       *bool
	SearchTerm     *string
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence. Update never touches the
// SLA columns; those change only through MarkBreached and MarkResolved so a
// concurrent sweep cannot be overwritten by a stale read-modify-write. Update
// succeeds only when ticket.Version matches the stored version and returns
// domain.ErrTicketConflict otherwise; on success ticket.Version is advanced.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	MarkBreached(ctx context.Context, id string, at time.Time) (bool, error)
	MarkResolved(ctx context.Context, id string, at time.Time) (bool, error)
}

var ticketColumns = []string{
	"id", "external_key", "subject", "description", "category", "priority", "status",
	"assigned_to", "contact_id", "organization_id", "sla_due_date", "sla_breached",
	"sla_resolved_at", "resolution_notes", "attachments", "created_at", "updated_at",
	"version",
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query, args, err := psql.
		Insert("tickets").
		Columns(ticketColumns...).
		Values(
			ticket.ID,
			ticket.ExternalKey,
			ticket.Subject,
			ticket.Description,
			ticket.Category,
			ticket.Priority,
			ticket.Status,
			ticket.AssignedTo,
			ticket.ContactID,
			ticket.OrganizationID,
			ticket.SLA.DueDate,
			ticket.SLA.Breached,
			ticket.SLA.ResolvedAt,
			ticket.ResolutionNotes,
			nonNilStrings(ticket.Attachments),
			ticket.CreatedAt,
			ticket.UpdatedAt,
			ticket.Version,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, category=$3, priority=$4, status=$5,
            assigned_to=$6, contact_id=$7, organization_id=$8, resolution_notes=$9,
            attachments=$10, updated_at=$11, version = version + 1
        WHERE id=$12 AND version=$13
        RETURNING version`
	var version int64
	err := r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.ContactID,
		ticket.OrganizationID,
		ticket.ResolutionNotes,
		nonNilStrings(ticket.Attachments),
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check ticket: %w", err)
		}
		if !exists {
			return domain.ErrTicketNotFound
		}
		return domain.ErrTicketConflict
	}
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	ticket.Version = version
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query, args, err := psql.Select(ticketColumns...).From("tickets").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	builder := psql.Select(ticketColumns...).From("tickets")

	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.Priorities) > 0 {
		builder = builder.Where(sq.Eq{"priority": filter.Priorities})
	}
	if filter.Category != nil {
		builder = builder.Where(sq.Eq{"category": *filter.Category})
	}
	if filter.AssignedTo != nil {
		builder = builder.Where(sq.Eq{"assigned_to": *filter.AssignedTo})
	}
	if filter.ContactID != nil {
		builder = builder.Where(sq.Eq{"contact_id": *filter.ContactID})
	}
	if filter.OrganizationID != nil {
		builder = builder.Where(sq.Eq{"organization_id": *filter.OrganizationID})
	}
	if filter.Breached != nil {
		builder = builder.Where(sq.Eq{"sla_breached": *filter.Breached})
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"LOWER(subject)": search},
			sq.Like{"LOWER(description)": search},
		})
	}

	query, args, err := builder.
		OrderBy("updated_at DESC").
		Limit(uint64(normalizeLimit(filter.Limit))).
		Offset(uint64(normalizeOffset(filter.Offset))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListBreachCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	query, args, err := psql.Select(ticketColumns...).
		From("tickets").
		Where(sq.NotEq{"status": []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed}}).
		Where(sq.Eq{"sla_breached": false}).
		Where(sq.Lt{"sla_due_date": now}).
		OrderBy("sla_due_date ASC").
		Limit(uint64(normalizeLimit(limit))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list breach candidates: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) MarkBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET sla_breached = TRUE, updated_at = $2
        WHERE id = $1 AND sla_breached = FALSE AND status NOT IN ('resolved', 'closed')`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark ticket breached: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) MarkResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET sla_resolved_at = $2
        WHERE id = $1 AND sla_resolved_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark ticket resolved: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.ContactID,
		&ticket.OrganizationID,
		&ticket.SLA.DueDate,
		&ticket.SLA.Breached,
		&ticket.SLA.ResolvedAt,
		&ticket.ResolutionNotes,
		&ticket.Attachments,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
