package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-shop/vitrine/internal/rbac"
)

func newTestRouter(t *testing.T) (http.Handler, *mockRepository) {
	t.Helper()
	repo := newMockRepository(
		User{ID: "adm", Email: "adm@vitrine.test", Name: "Ada", Role: rbac.RoleAdmin, Active: true},
		User{ID: "mod", Email: "mod@vitrine.test", Name: "Moe", Role: rbac.RoleModerator, Active: true},
		User{ID: "u1", Email: "u1@vitrine.test", Name: "Uma", Role: rbac.RoleUser, Active: true},
	)
	service := NewService(repo, rbac.NewAuthorizer(repo, ownerEmail), ServiceConfig{})
	handler := NewHandler(nil, service)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), principal(id)))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/admin/users", handler.MountRoutes)
	return r, repo
}

func doRequest(router http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestHandlerListUsers(t *testing.T) {
	router, _ := newTestRouter(t)

	res := doRequest(router, http.MethodGet, "/admin/users?role=User,Moderator", "adm", "")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Users []User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Len(t, body.Users, 2)

	res = doRequest(router, http.MethodGet, "/admin/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doRequest(router, http.MethodGet, "/admin/users", "u1", "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(router, http.MethodGet, "/admin/users?role=root", "adm", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHandlerUpdateAndDelete(t *testing.T) {
	router, repo := newTestRouter(t)

	res := doRequest(router, http.MethodPatch, "/admin/users/u1", "mod", `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(router, http.MethodPatch, "/admin/users/u1", "adm", `{"role":"editor","active":false}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, rbac.RoleEditor, repo.get("u1").Role)
	assert.False(t, repo.get("u1").Active)

	res = doRequest(router, http.MethodPatch, "/admin/users/u1", "adm", `{`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(router, http.MethodPatch, "/admin/users/u1", "", `{"role":"Owner"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doRequest(router, http.MethodPatch, "/admin/users/u1", "adm", `{"role":"Owner"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(router, http.MethodPatch, "/admin/users/u1", "adm", `{"deleted_at":null}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(router, http.MethodPatch, "/admin/users/adm", "adm", `{}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(router, http.MethodPatch, "/admin/users/u1", "adm", `{"role":"editor","active":false}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(router, http.MethodDelete, "/admin/users/mod", "mod", "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(router, http.MethodDelete, "/admin/users/u1", "mod", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotNil(t, repo.get("u1").DeletedAt)

	res = doRequest(router, http.MethodDelete, "/admin/users/u1", "mod", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}
