package domain

import "time"

// AssignmentRule routes tickets of a category/priority pair to a fixed assignee.
// Rules are evaluated in Position order; the first match wins.
type AssignmentRule struct {
	ID         string         `json:"id"`
	Category   string         `json:"category"`
	Priority   TicketPriority `json:"priority"`
	AssigneeID string         `json:"assignee_id"`
	Position   int64          `json:"position"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Matches reports whether the rule applies to t.
func (r AssignmentRule) Matches(t *Ticket) bool {
	return t != nil && r.Category == t.Category && r.Priority == t.Priority
}
