package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-shop/vitrine/internal/auth"
	"github.com/vitrine-shop/vitrine/internal/rbac"
	"github.com/vitrine-shop/vitrine/internal/shared"
	_ "github.com/vitrine-shop/vitrine/testing"
)

const ownerEmail = "owner@vitrine.test"

type memoryRepo struct {
	records map[string]*rbac.UserRecord
}

func (m *memoryRepo) FindUserRecord(ctx context.Context, id string) (*rbac.UserRecord, error) {
	for _, rec := range m.records {
		if rec.ID == id {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryRepo) UpsertUser(ctx context.Context, id auth.Identity) (*rbac.UserRecord, error) {
	rec, ok := m.records[id.Email]
	if !ok {
		rec = &rbac.UserRecord{ID: uuid.NewString(), Email: id.Email, Role: rbac.RoleUser, Active: true}
		m.records[id.Email] = rec
	}
	rec.Name = id.Name
	copied := *rec
	return &copied, nil
}

func (m *memoryRepo) PromoteToAdmin(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

type stubProvider struct {
	identities map[string]auth.Identity
}

func (s stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (s stubProvider) Identify(ctx context.Context, code string) (auth.Identity, error) {
	id, ok := s.identities[code]
	if !ok {
		return auth.Identity{}, auth.ErrEmailUnverified
	}
	return id, nil
}

type authFixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	repo     *memoryRepo
	cookies  []*http.Cookie
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")

	repo := &memoryRepo{records: map[string]*rbac.UserRecord{
		"off@vitrine.test": {ID: "off", Email: "off@vitrine.test", Role: rbac.RoleEditor, Active: false},
	}}
	tokens, err := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "vitrine", time.Minute)
	require.NoError(t, err)
	mw := rbac.Middleware{
		Authorizer: rbac.NewAuthorizer(repo, ownerEmail),
		Resolver:   rbac.NewResolver(tokens, nil),
	}
	handler := auth.NewHandler(auth.HandlerConfig{
		Service: auth.NewService(repo, ownerEmail, nil),
		Provider: stubProvider{identities: map[string]auth.Identity{
			"good": {Subject: "g-1", Email: "nia@vitrine.test", Name: "Nia"},
			"off":  {Subject: "g-2", Email: "off@vitrine.test", Name: "Otto"},
		}},
		Sessions:   sessionManager,
		CSRF:       csrfManager,
		Tokens:     tokens,
		RBAC:       mw,
		AfterLogin: "/admin",
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, req.WithContext(ctx))
			require.NoError(t, sessionManager.Commit(ctx, w, req, sess))
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	r.Use(mw.Authenticate)
	r.Route("/auth", handler.MountRoutes)
	return &authFixture{router: r, sessions: sessionManager, repo: repo}
}

func (f *authFixture) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	for _, c := range f.cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	for _, c := range res.Result().Cookies() {
		if c.MaxAge < 0 {
			f.cookies = nil
			continue
		}
		f.cookies = []*http.Cookie{c}
	}
	return res
}

func (f *authFixture) login(t *testing.T, code string) *httptest.ResponseRecorder {
	t.Helper()
	res := f.do(http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusFound, res.Code)
	loc, err := url.Parse(res.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return f.do(http.MethodGet, "/auth/callback?state="+url.QueryEscape(state)+"&code="+code, nil)
}

func TestLoginFlowStoresPrincipal(t *testing.T) {
	f := newAuthFixture(t)

	res := f.login(t, "good")
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin", res.Header().Get("Location"))

	res = f.do(http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		User      rbac.Principal `json:"user"`
		CSRFToken string         `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "nia@vitrine.test", body.User.Email)
	assert.NotEmpty(t, body.CSRFToken)

	res = f.do(http.MethodGet, "/auth/role", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"role":"User"}`, res.Body.String())
}

func TestCallbackRejectsBadState(t *testing.T) {
	f := newAuthFixture(t)
	f.do(http.MethodGet, "/auth/login", nil)

	res := f.do(http.MethodGet, "/auth/callback?state=forged&code=good", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCallbackDeniesInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)

	res := f.login(t, "off")
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Contains(t, res.Header().Get("Location"), "AccessDenied")

	res = f.do(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestTokenIssuedToSessionAndAcceptedAsBearer(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusSeeOther, f.login(t, "good").Code)

	res := f.do(http.MethodPost, "/auth/token", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var token auth.AccessToken
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &token))
	require.NotEmpty(t, token.Token)

	f.cookies = nil
	bearer := http.Header{"Authorization": {"Bearer " + token.Token}}
	res = f.do(http.MethodGet, "/auth/session", bearer)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "nia@vitrine.test")

	res = f.do(http.MethodPost, "/auth/token", bearer)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusSeeOther, f.login(t, "good").Code)

	res := f.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = f.do(http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
