package roles_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-shop/vitrine/internal/rbac"
	"github.com/vitrine-shop/vitrine/internal/roles"
	_ "github.com/vitrine-shop/vitrine/testing"
)

func TestCatalogueFlagsAssignableRoles(t *testing.T) {
	svc := roles.NewService()

	got := svc.Catalogue(rbac.RoleModerator)
	require.Len(t, got, 4)
	assert.Equal(t, rbac.RoleAdmin, got[0].Name)
	assert.Equal(t, rbac.RoleUser, got[3].Name)
	assigned := map[rbac.Role]bool{}
	for _, e := range got {
		assigned[e.Name] = e.Assignable
	}
	assert.Equal(t, map[rbac.Role]bool{
		rbac.RoleAdmin:     false,
		rbac.RoleEditor:    false,
		rbac.RoleModerator: true,
		rbac.RoleUser:      true,
	}, assigned)

	for _, e := range svc.Catalogue(rbac.RoleAdmin) {
		assert.True(t, e.Assignable, e.Name)
	}
	for _, e := range svc.Catalogue(rbac.Role("Owner")) {
		assert.False(t, e.Assignable, e.Name)
	}
}

type roleStore map[string]rbac.Role

func (s roleStore) FindUserRecord(ctx context.Context, id string) (*rbac.UserRecord, error) {
	role, ok := s[id]
	if !ok {
		return nil, nil
	}
	return &rbac.UserRecord{ID: id, Role: role, Active: true}, nil
}

func TestHandlerListsRolesForManagers(t *testing.T) {
	store := roleStore{"mo": rbac.RoleModerator, "ed": rbac.RoleEditor}
	mw := rbac.Middleware{Authorizer: rbac.NewAuthorizer(store, "owner@vitrine.test")}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), &rbac.Principal{ID: id}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/admin/roles", roles.NewHandler(nil, roles.NewService(), mw).MountRoutes)

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/roles", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		return res
	}

	res := call("mo")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Roles []roles.Entry `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Roles, 4)
	assert.False(t, body.Roles[1].Assignable)

	assert.Equal(t, http.StatusForbidden, call("ed").Code)
	assert.Equal(t, http.StatusUnauthorized, call("").Code)
}
