package domain

import "time"

// Role enumerates what an authenticated caller may do.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleAgent   Role = "AGENT"
	RoleService Role = "SERVICE"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleService:
		return true
	}
	return false
}

// Token represents issued authentication token metadata.
type Token struct {
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
