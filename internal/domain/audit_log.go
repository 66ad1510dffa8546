package domain

import "time"

// AuditAction captures which mutation an audit entry records.
type AuditAction string

const (
	AuditActionCreate    AuditAction = "create"
	AuditActionUpdate    AuditAction = "update"
	AuditActionAssign    AuditAction = "assign"
	AuditActionDelete    AuditAction = "delete"
	AuditActionSLABreach AuditAction = "sla_breach"
)

// AuditChanges holds snapshots of the affected fields only.
type AuditChanges struct {
	Before map[string]any `json:"before"`
	After  map[string]any `json:"after"`
}

// AuditLog is an immutable audit trail entry for a ticket mutation.
type AuditLog struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticket_id"`
	UserID    string        `json:"user_id"`
	Action    AuditAction   `json:"action"`
	Changes   *AuditChanges `json:"changes,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
