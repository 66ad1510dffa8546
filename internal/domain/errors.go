package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Ticket errors
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketConflict  = errors.New("ticket was modified concurrently")
	ErrInvalidStatus   = errors.New("invalid ticket status")
	ErrInvalidPriority = errors.New("invalid ticket priority")
	ErrSubjectRequired = errors.New("subject is required")
	ErrRuleNotFound    = errors.New("assignment rule not found")
	ErrAuditFailed     = errors.New("audit write failed")

	// Configuration errors
	ErrUnknownPriority  = errors.New("no SLA window configured for priority")
	ErrInvalidSLAConfig = errors.New("invalid SLA configuration")
	ErrEmptyAgentPool   = errors.New("no assignment rule matched and the agent pool is empty")
	ErrInvalidTrigger   = errors.New("invalid trigger definition")
)
