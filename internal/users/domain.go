package users

import (
	"time"

	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// User is a back-office account.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Image     string     `json:"image,omitempty"`
	Role      rbac.Role  `json:"role"`
	Active    bool       `json:"active"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Record projects the user onto the fields authorization reads.
func (u User) Record() *rbac.UserRecord {
	return &rbac.UserRecord{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Active:    u.Active,
		DeletedAt: u.DeletedAt,
	}
}

// ListFilter narrows ListUsers.
type ListFilter struct {
	Name    string      `validate:"max=200"`
	Roles   []rbac.Role `validate:"dive,oneof=Admin Editor Moderator User"`
	Deleted bool
	// ExcludeID is filled from the acting principal.
	ExcludeID string `validate:"-"`
}

// UpdateInput changes the role and/or active flag of one user.
type UpdateInput struct {
	ID     string     `json:"id" validate:"required,max=64"`
	Active *bool      `json:"active,omitempty"`
	Role   *rbac.Role `json:"role,omitempty" validate:"omitempty,oneof=Admin Editor Moderator User"`
}

// NoticeKind names the account change a user is told about.
type NoticeKind string

const (
	NoticeRoleChanged NoticeKind = "role_changed"
	NoticeSuspended   NoticeKind = "suspended"
	NoticeReactivated NoticeKind = "reactivated"
	NoticeDeleted     NoticeKind = "deleted"
)

// AccountNotice tells a user their account changed.
type AccountNotice struct {
	UserID  string
	Email   string
	Kind    NoticeKind
	Role    rbac.Role
	ActorID string
}
