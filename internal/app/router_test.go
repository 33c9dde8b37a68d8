package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-shop/vitrine/internal/observability"
	"github.com/vitrine-shop/vitrine/internal/rbac"
	"github.com/vitrine-shop/vitrine/internal/roles"
	"github.com/vitrine-shop/vitrine/internal/shared"
)

type fixedStore map[string]rbac.Role

func (s fixedStore) FindUserRecord(ctx context.Context, id string) (*rbac.UserRecord, error) {
	role, ok := s[id]
	if !ok {
		return nil, nil
	}
	return &rbac.UserRecord{ID: id, Role: role, Active: true}, nil
}

type fixedVerifier map[string]rbac.Principal

func (v fixedVerifier) VerifyAccessToken(raw string) (*rbac.Principal, error) {
	p, ok := v[raw]
	if !ok {
		return nil, io.EOF
	}
	return &p, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{
		Authorizer: rbac.NewAuthorizer(fixedStore{"mo": rbac.RoleModerator}, "owner@vitrine.test"),
		Resolver:   rbac.NewResolver(fixedVerifier{"mo-token": {ID: "mo"}}, logger),
		Logger:     logger,
	}
	cfg := &Config{AppEnv: "production", RateLimitPerMinute: 1000, AppRequestTimeout: time.Second}
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: shared.NewSessionManager(client, "test_session", "secret", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf"),
		RBACMiddleware: mw,
		Metrics:        observability.NewMetrics(),
		RolesHandler:   roles.NewHandler(logger, roles.NewService(), mw),
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("X-Forwarded-Proto", "https")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	res := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))

	res = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRouterAuthorizesBearerRequests(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/roles", nil)
	req.Header.Set("Authorization", "Bearer mo-token")
	assert.Equal(t, http.StatusOK, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/roles", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)
}

func TestRouterEnforcesCSRFForCookieMutations(t *testing.T) {
	router := newTestRouter(t)

	res := serve(router, httptest.NewRequest(http.MethodPost, "/admin/roles", nil))
	assert.Equal(t, http.StatusForbidden, res.Code)

	// Bearer requests skip CSRF and reach routing.
	req := httptest.NewRequest(http.MethodPost, "/admin/roles", nil)
	req.Header.Set("Authorization", "Bearer mo-token")
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, req).Code)
}
