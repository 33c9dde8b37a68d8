package shared

import (
	"context"
	"errors"
)

var (
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrSessionMissing occurs when a handler runs without the session middleware.
	ErrSessionMissing = errors.New("session missing")
)

// SafeError marks errors whose message may be shown to end users.
type SafeError interface {
	error
	SafeMessage() string
}

// UserSafeMessage returns a message suitable for end users. Internal errors
// collapse into a generic text.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe SafeError
	if errors.As(err, &safe) {
		return safe.SafeMessage()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "The request took too long. Please try again."
	}
	return "Something went wrong. Please try again later."
}

// PublicError is an error with a message safe to show to users.
type PublicError struct {
	Message string
	Err     error
}

func (e *PublicError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PublicError) Unwrap() error { return e.Err }

// SafeMessage implements SafeError.
func (e *PublicError) SafeMessage() string { return e.Message }
