package auth

import (
	"errors"
	"time"
)

var (
	// ErrSignInDenied is returned for deleted or suspended accounts.
	ErrSignInDenied = errors.New("auth: sign-in denied")
	// ErrStateMismatch is returned when the OAuth state does not match the session.
	ErrStateMismatch = errors.New("auth: oauth state mismatch")
	// ErrEmailUnverified is returned when the provider has not verified the address.
	ErrEmailUnverified = errors.New("auth: email not verified")
)

// Identity is what the identity provider asserts about a user.
type Identity struct {
	Subject string `validate:"required"`
	Email   string `validate:"required,email,max=320"`
	Name    string `validate:"max=200"`
	Picture string `validate:"omitempty,url,max=2048"`
}

// AccessToken is a signed bearer token handed to API clients.
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
