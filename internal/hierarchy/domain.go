// Package hierarchy owns the account tree: roles, the capability
// matrix, ancestry resolution and the authorization engine.
package hierarchy

import (
	"time"

	"github.com/agentnet/agentnet/internal/shared"
)

// Role enumerates account roles ordered from most to least privileged.
// The ordinal is significant: a parent must strictly outrank its children.
type Role int

const (
	RoleAdmin Role = iota
	RoleManager
	RoleCityManager
	RoleSuperAgent
	RoleAgent
	RolePlayer

	roleCount
)

var roleNames = [roleCount]string{"admin", "manager", "citymanager", "superagent", "agent", "player"}

// String returns the wire name of the role.
func (r Role) String() string {
	if r < 0 || r >= roleCount {
		return "unknown"
	}
	return roleNames[r]
}

// Valid reports whether the role is a member of the closed role set.
func (r Role) Valid() bool {
	return r >= 0 && r < roleCount
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	return r < other
}

// ParseRole resolves a wire name to a Role. Unknown names are an
// input-validation failure, not a lookup failure.
func ParseRole(name string) (Role, error) {
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, shared.NewValidationError("role", "unknown role: "+name)
}

// Roles returns all roles in privilege order.
func Roles() []Role {
	out := make([]Role, roleCount)
	for i := range out {
		out[i] = Role(i)
	}
	return out
}

// Account is a node in the account tree. ParentID is nil only for the
// root admin. Balance is integer cents and never negative.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	ParentID     *string
	Balance      int64
	LastAccess   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsRoot reports whether the account is the root admin.
func (a *Account) IsRoot() bool {
	return a.Role == RoleAdmin
}
