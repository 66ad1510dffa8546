package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/repository"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

// AssignmentService picks an owner for new tickets: the first matching rule,
// otherwise the next agent in the round-robin pool.
type AssignmentService struct {
	rules  repository.AssignmentRuleRepository
	cursor repository.Cursor
	pool   []string
	logger *zap.Logger
	now    func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	RuleRepo  repository.AssignmentRuleRepository
	Cursor    repository.Cursor
	AgentPool []string
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	cursor := deps.Cursor
	if cursor == nil {
		cursor = &repository.AtomicCursor{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		rules:  deps.RuleRepo,
		cursor: cursor,
		pool:   append([]string(nil), deps.AgentPool...),
		logger: observability.Named(deps.Logger, "assignment"),
		now:    now,
	}
}

// Resolve returns the assignee for ticket. It fails with ErrEmptyAgentPool when
// no rule matches and there is nobody to rotate through.
func (s *AssignmentService) Resolve(ctx context.Context, ticket *domain.Ticket) (string, error) {
	if s.rules != nil {
		rules, err := s.rules.List(ctx)
		if err != nil {
			return "", fmt.Errorf("list assignment rules: %w", err)
		}
		for _, rule := range rules {
			if rule.Matches(ticket) {
				s.logger.Debug("assignment rule matched",
					zap.String("rule_id", rule.ID),
					zap.String("assignee_id", rule.AssigneeID))
				return rule.AssigneeID, nil
			}
		}
	}

	if len(s.pool) == 0 {
		return "", domain.ErrEmptyAgentPool
	}
	n, err := s.cursor.Next(ctx)
	if err != nil {
		return "", err
	}
	return s.pool[n%uint64(len(s.pool))], nil
}

// Pool returns a copy of the round-robin agents.
func (s *AssignmentService) Pool() []string {
	return append([]string(nil), s.pool...)
}

// AddRule validates and appends a rule after the existing ones.
func (s *AssignmentService) AddRule(ctx context.Context, rule domain.AssignmentRule) (*domain.AssignmentRule, error) {
	rule.Category = strings.TrimSpace(rule.Category)
	rule.AssigneeID = strings.TrimSpace(rule.AssigneeID)
	details := map[string]any{}
	if rule.Category == "" {
		details["category"] = "required"
	}
	if !rule.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high, critical"
	}
	if rule.AssigneeID == "" {
		details["assignee_id"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid assignment rule", details)
	}

	rule.ID = uuid.NewString()
	rule.CreatedAt = s.now()
	if err := s.rules.Create(ctx, &rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("assignment rule added",
		zap.String("rule_id", rule.ID),
		zap.String("category", rule.Category),
		zap.String("priority", string(rule.Priority)))
	return &rule, nil
}

// ListRules returns rules in evaluation order.
func (s *AssignmentService) ListRules(ctx context.Context) ([]domain.AssignmentRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// RemoveRule deletes a rule by id.
func (s *AssignmentService) RemoveRule(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
