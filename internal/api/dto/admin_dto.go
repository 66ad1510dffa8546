package dto

import "github.com/crmflow/crm-automation/internal/domain"

// CreateAssignmentRuleRequest payload.
type CreateAssignmentRuleRequest struct {
	Category   string                `json:"category"`
	Priority   domain.TicketPriority `json:"priority"`
	AssigneeID string                `json:"assignee_id"`
}

// AssignmentRulesResponse lists rules along with the round-robin pool.
type AssignmentRulesResponse struct {
	Rules     []domain.AssignmentRule `json:"rules"`
	AgentPool []string                `json:"agent_pool"`
}

// SweepResponse reports a manual SLA sweep.
type SweepResponse struct {
	Breached int `json:"breached"`
}
