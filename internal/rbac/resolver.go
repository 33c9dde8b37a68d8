package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vitrine-shop/vitrine/internal/shared"
)

// TokenVerifier validates bearer access tokens.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (*Principal, error)
}

// SessionView is the part of a session the resolver reads.
type SessionView interface {
	User() string
	Get(key string) string
}

// PrincipalFromSession extracts the principal stored at sign-in. A session
// without a user id yields nil.
func PrincipalFromSession(sess SessionView) *Principal {
	if sess == nil {
		return nil
	}
	id := strings.TrimSpace(sess.User())
	if id == "" {
		return nil
	}
	return &Principal{
		ID:    id,
		Email: sess.Get(shared.SessionEmailKey),
		Name:  sess.Get(shared.SessionNameKey),
	}
}

// Resolver finds the caller of a request. It performs no store lookups.
type Resolver struct {
	tokens TokenVerifier
	logger *slog.Logger
}

// NewResolver constructs a Resolver. A nil verifier disables bearer tokens.
func NewResolver(tokens TokenVerifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tokens: tokens, logger: logger}
}

// Resolve returns the principal of r or nil for anonymous requests. When an
// Authorization header is present it is the only source considered.
func (res *Resolver) Resolve(r *http.Request) *Principal {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		return res.fromBearer(r, header)
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil
	}
	return PrincipalFromSession(sess)
}

func (res *Resolver) fromBearer(r *http.Request, header string) *Principal {
	scheme, raw, ok := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" || res.tokens == nil {
		return nil
	}
	p, err := res.tokens.VerifyAccessToken(raw)
	if err != nil {
		res.logger.DebugContext(r.Context(), "bearer token rejected", slog.Any("error", err))
		return nil
	}
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return nil
	}
	return p
}
