package rbac

import (
	"context"
	"log/slog"
	"strings"
)

// RoleStore reads the authorization projection of a user.
type RoleStore interface {
	// FindUserRecord returns (nil, nil) when no user has the id.
	FindUserRecord(ctx context.Context, id string) (*UserRecord, error)
}

// Observer receives every authorization outcome.
type Observer interface {
	ObserveDecision(outcome, reason string)
}

// Authorizer runs the role policy against fresh store reads. It keeps no
// state between calls.
type Authorizer struct {
	store    RoleStore
	admin    SuperAdmin
	logger   *slog.Logger
	observer Observer
}

// Option customises an Authorizer.
type Option func(*Authorizer)

// WithLogger sets the logger used for denials and lookup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver attaches an outcome observer such as a metrics counter.
func WithObserver(o Observer) Option {
	return func(a *Authorizer) {
		a.observer = o
	}
}

// NewAuthorizer constructs an Authorizer backed by store.
func NewAuthorizer(store RoleStore, superAdminEmail string, opts ...Option) *Authorizer {
	a := &Authorizer{
		store:  store,
		admin:  NewSuperAdmin(superAdminEmail),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize decides whether p may invoke an operation gated by required.
// Denials are returned as *Error; store failures wrap ErrLookupFailure.
func (a *Authorizer) Authorize(ctx context.Context, p *Principal, required RoleSet) (Decision, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return a.finish(ctx, Decide(nil, nil, required, a.admin))
	}
	if a.admin.Matches(p.Email) {
		return a.finish(ctx, Decide(p, nil, required, a.admin))
	}

	rec, err := a.store.FindUserRecord(ctx, p.ID)
	if err != nil {
		a.observe("error", ReasonLookupFailure)
		a.logger.ErrorContext(ctx, "rbac role lookup", slog.String("user_id", p.ID), slog.Any("error", err))
		return Decision{Reason: ReasonLookupFailure, Principal: p}, lookupFailure(err)
	}
	if err := ctx.Err(); err != nil {
		return Decision{Principal: p}, err
	}
	return a.finish(ctx, Decide(p, rec, required, a.admin))
}

// CheckSelfService runs the self-service rules for a mutation on targetID.
func (a *Authorizer) CheckSelfService(ctx context.Context, actor Actor, targetID string, newRole *Role) error {
	d := CheckSelfService(actor, targetID, newRole)
	if d.Allowed {
		return nil
	}
	a.observe("deny", d.Reason)
	a.logger.WarnContext(ctx, "rbac self-service denied",
		slog.String("actor_id", actor.ID),
		slog.String("target_id", targetID),
		slog.String("reason", string(d.Reason)))
	return d.Err()
}

func (a *Authorizer) finish(ctx context.Context, d Decision) (Decision, error) {
	if d.Allowed {
		a.observe("allow", d.Reason)
		return d, nil
	}
	a.observe("deny", d.Reason)
	attrs := []any{slog.String("reason", string(d.Reason))}
	if d.Principal != nil {
		attrs = append(attrs, slog.String("user_id", d.Principal.ID), slog.String("role", string(d.Role)))
	}
	a.logger.DebugContext(ctx, "rbac denied", attrs...)
	return d, d.Err()
}

func (a *Authorizer) observe(outcome string, reason Reason) {
	if a.observer != nil {
		a.observer.ObserveDecision(outcome, string(reason))
	}
}
