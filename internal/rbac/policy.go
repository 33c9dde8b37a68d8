package rbac

import (
	"strings"

	"golang.org/x/text/cases"
)

// Reason explains an authorization outcome.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonSuperAdmin       Reason = "super_admin"
	ReasonNoPrincipal      Reason = "no_principal"
	ReasonAccountDeleted   Reason = "account_deleted"
	ReasonAccountInactive  Reason = "account_inactive"
	ReasonRoleNotPermitted Reason = "role_not_permitted"
	ReasonSelfModification Reason = "self_modification"
	ReasonRankEscalation   Reason = "rank_escalation"
	ReasonUnknownRole      Reason = "unknown_role"
	ReasonLookupFailure    Reason = "lookup_failure"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
	// Role is the effective role the decision was made with.
	Role       Role
	SuperAdmin bool
	Principal  *Principal
	// Record is nil when the store had no user or the lookup was skipped.
	Record *UserRecord
}

// Err returns nil for an allowed decision and a typed denial otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return denial(d.Reason)
}

// Actor returns the acting side for follow-up self-service checks.
func (d Decision) Actor() Actor {
	if d.Principal == nil {
		return Actor{}
	}
	return Actor{ID: d.Principal.ID, Role: d.Role}
}

// SuperAdmin holds the single override address.
type SuperAdmin struct {
	email string
}

// NewSuperAdmin normalises the configured override address. An empty address
// disables the override.
func NewSuperAdmin(email string) SuperAdmin {
	return SuperAdmin{email: normalizeEmail(email)}
}

// Matches reports whether email is the override address.
func (s SuperAdmin) Matches(email string) bool {
	if s.email == "" {
		return false
	}
	return normalizeEmail(email) == s.email
}

func normalizeEmail(email string) string {
	// Casers keep state, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(email))
}

// Decide applies the role policy to an already resolved principal and record.
// It performs no I/O.
func Decide(p *Principal, rec *UserRecord, required RoleSet, admin SuperAdmin) Decision {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return Decision{Reason: ReasonNoPrincipal}
	}
	if admin.Matches(p.Email) {
		return Decision{Allowed: true, Reason: ReasonSuperAdmin, Role: RoleAdmin, SuperAdmin: true, Principal: p, Record: rec}
	}

	role := RoleUser
	if rec != nil {
		switch {
		case rec.IsDeleted():
			return Decision{Reason: ReasonAccountDeleted, Role: rec.Role, Principal: p, Record: rec}
		case !rec.Active:
			return Decision{Reason: ReasonAccountInactive, Role: rec.Role, Principal: p, Record: rec}
		}
		role = rec.Role
	}

	if !required.Contains(role) {
		return Decision{Reason: ReasonRoleNotPermitted, Role: role, Principal: p, Record: rec}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed, Role: role, Principal: p, Record: rec}
}

// CheckSelfService guards user-management mutations. The actor may not touch
// its own account and may not assign a role ranked above its own. Assigning
// a role equal to the actor's rank is allowed.
func CheckSelfService(actor Actor, targetID string, newRole *Role) Decision {
	principal := &Principal{ID: actor.ID}
	if strings.TrimSpace(actor.ID) == "" {
		return Decision{Reason: ReasonNoPrincipal}
	}
	if strings.TrimSpace(targetID) == strings.TrimSpace(actor.ID) {
		return Decision{Reason: ReasonSelfModification, Role: actor.Role, Principal: principal}
	}
	if newRole != nil {
		if !newRole.Valid() {
			return Decision{Reason: ReasonUnknownRole, Role: actor.Role, Principal: principal}
		}
		if newRole.Rank() > actor.Role.Rank() {
			return Decision{Reason: ReasonRankEscalation, Role: actor.Role, Principal: principal}
		}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed, Role: actor.Role, Principal: principal}
}
