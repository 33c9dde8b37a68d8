package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Authorizer *Authorizer
	Resolver   *Resolver
	Logger     *slog.Logger
}

// Authenticate resolves the caller once per request and stores it in the
// context. Anonymous requests pass through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Resolver == nil {
			next.ServeHTTP(w, r)
			return
		}
		if p := m.Resolver.Resolve(r); p != nil {
			r = r.WithContext(ContextWithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePrincipal rejects anonymous requests without consulting roles.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.principal(r)
		if p == nil {
			m.deny(w, r, denial(ReasonNoPrincipal))
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// Require ensures the caller holds one of roles. Every request re-reads the
// caller's record; an empty role list admits only the super-admin.
func (m Middleware) Require(roles ...Role) func(http.Handler) http.Handler {
	required := Roles(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := m.Authorizer.Authorize(r.Context(), m.principal(r), required)
			if err != nil {
				m.deny(w, r, err)
				return
			}
			ctx := ContextWithDecision(r.Context(), d)
			ctx = ContextWithPrincipal(ctx, d.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m Middleware) principal(r *http.Request) *Principal {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return p
	}
	if m.Resolver != nil {
		return m.Resolver.Resolve(r)
	}
	return nil
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	if m.Logger != nil && !errors.Is(err, ErrUnauthenticated) {
		level := slog.LevelInfo
		if errors.Is(err, ErrLookupFailure) {
			level = slog.LevelError
		}
		m.Logger.Log(r.Context(), level, "rbac request denied",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
