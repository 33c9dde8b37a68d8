package users

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes. Authorization happens inside the
// service so every operation is checked regardless of the caller.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Patch("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

type updateRequest struct {
	Active *bool   `json:"active"`
	Role   *string `json:"role"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListUsers(r.Context(), rbac.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	if list == nil {
		list = []User{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := httpx.DecodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	input := UpdateInput{ID: chi.URLParam(r, "id"), Active: body.Active}
	if body.Role != nil {
		role, err := rbac.ParseRole(*body.Role)
		if err != nil {
			// The service rejects it after authorizing the caller.
			role = rbac.Role(strings.TrimSpace(*body.Role))
		}
		input.Role = &role
	}
	user, err := h.service.UpdateUser(r.Context(), rbac.PrincipalFromContext(r.Context()), input)
	if err != nil {
		h.fail(w, r, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.DeleteUser(r.Context(), rbac.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "delete user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var denied *rbac.Error
	switch {
	case errors.As(err, &denied), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrNotFound):
		h.logger.InfoContext(r.Context(), op+" rejected", slog.Any("error", err))
	default:
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Name: strings.TrimSpace(q.Get("name"))}
	if raw := q.Get("deleted"); raw != "" {
		deleted, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, httpx.ErrValidation
		}
		filter.Deleted = deleted
	}
	for _, value := range q["role"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			role, err := rbac.ParseRole(part)
			if err != nil {
				return ListFilter{}, errors.Join(httpx.ErrValidation, err)
			}
			filter.Roles = append(filter.Roles, role)
		}
	}
	return filter, nil
}
