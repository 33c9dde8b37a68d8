package rbac

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated is returned when no principal can be resolved.
	ErrUnauthenticated = errors.New("rbac: unauthenticated")
	// ErrForbidden is returned when a resolved principal may not proceed.
	ErrForbidden = errors.New("rbac: forbidden")
	// ErrLookupFailure wraps role store failures. It is never downgraded to a default role.
	ErrLookupFailure = errors.New("rbac: role lookup failed")
)

// Error is a typed authorization denial. It matches ErrUnauthenticated or
// ErrForbidden through errors.Is.
type Error struct {
	Kind   error
	Reason Reason
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// HTTPStatus maps the denial to a response status.
func (e *Error) HTTPStatus() int {
	if errors.Is(e.Kind, ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func denial(reason Reason) *Error {
	if reason == ReasonNoPrincipal {
		return &Error{Kind: ErrUnauthenticated, Reason: reason}
	}
	return &Error{Kind: ErrForbidden, Reason: reason}
}

func lookupFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrLookupFailure, err)
}

// ReasonOf extracts the denial reason carried by err.
func ReasonOf(err error) (Reason, bool) {
	var denied *Error
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}
