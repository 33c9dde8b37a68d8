package rbac

import (
	"fmt"
	"strings"
	"time"
)

// Role is one of the fixed back-office roles.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleEditor    Role = "Editor"
	RoleModerator Role = "Moderator"
	RoleUser      Role = "User"
)

// AllRoles returns every role from highest to lowest rank.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleEditor, RoleModerator, RoleUser}
}

// Rank orders roles by privilege. Higher ranks are more privileged; unknown
// roles rank below User.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 4
	case RoleEditor:
		return 3
	case RoleModerator:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

func (r Role) String() string {
	return string(r)
}

// ParseRole matches s against the known roles, ignoring case and whitespace.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, role := range AllRoles() {
		if strings.EqualFold(s, string(role)) {
			return role, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown role %q", s)
}

// RoleSet lists the roles allowed to invoke one operation.
type RoleSet []Role

// Roles builds a RoleSet.
func Roles(roles ...Role) RoleSet {
	return RoleSet(roles)
}

// Contains reports whether r is a member of the set.
func (s RoleSet) Contains(r Role) bool {
	for _, candidate := range s {
		if candidate == r {
			return true
		}
	}
	return false
}

func (s RoleSet) String() string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = string(r)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UserRecord is the authorization projection of a stored user.
type UserRecord struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Active    bool
	DeletedAt *time.Time
}

// IsDeleted reports whether the record was soft-deleted.
func (u *UserRecord) IsDeleted() bool {
	return u != nil && u.DeletedAt != nil
}

// Actor is the acting side of a user-management mutation.
type Actor struct {
	ID   string
	Role Role
}
