package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmflow/crm-automation/internal/domain"
)

// AssignmentRuleRepository stores ordered assignment rules.
type AssignmentRuleRepository interface {
	Create(ctx context.Context, rule *domain.AssignmentRule) error
	List(ctx context.Context) ([]domain.AssignmentRule, error)
	Delete(ctx context.Context, id string) error
}

type assignmentRuleRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRuleRepository builds repository.
func NewAssignmentRuleRepository(pool *pgxpool.Pool) AssignmentRuleRepository {
	return &assignmentRuleRepository{pool: pool}
}

// Create appends the rule; position comes from the table sequence.
func (r *assignmentRuleRepository) Create(ctx context.Context, rule *domain.AssignmentRule) error {
	query, args, err := psql.
		Insert("assignment_rules").
		Columns("id", "category", "priority", "assignee_id", "created_at").
		Values(rule.ID, rule.Category, rule.Priority, rule.AssigneeID, rule.CreatedAt).
		Suffix("RETURNING position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&rule.Position); err != nil {
		return fmt.Errorf("create assignment rule: %w", err)
	}
	return nil
}

func (r *assignmentRuleRepository) List(ctx context.Context) ([]domain.AssignmentRule, error) {
	query, args, err := psql.
		Select("id", "category", "priority", "assignee_id", "position", "created_at").
		From("assignment_rules").
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignment rules: %w", err)
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		var rule domain.AssignmentRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Category,
			&rule.Priority,
			&rule.AssigneeID,
			&rule.Position,
			&rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan assignment rule: %w", err)
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func (r *assignmentRuleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM assignment_rules WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment rule: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}
