package roles

import "github.com/vitrine-shop/vitrine/internal/rbac"

// Viewers may read the role catalogue.
var Viewers = rbac.Roles(rbac.RoleAdmin, rbac.RoleModerator)

// Entry describes one fixed role as seen by the caller.
type Entry struct {
	Name rbac.Role `json:"name"`
	Rank int       `json:"rank"`
	// Assignable is true when the caller may hand this role to someone else.
	Assignable bool `json:"assignable"`
}
