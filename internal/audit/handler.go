package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(Readers...))
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) {
			h.logger.ErrorContext(r.Context(), "audit timeline", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Actor:    q.Get("actor"),
		Action:   q.Get("action"),
		EntityID: q.Get("entity_id"),
	}
	var err error
	if filters.From, err = parseTime(q.Get("from")); err != nil {
		return TimelineFilters{}, err
	}
	if filters.To, err = parseTime(q.Get("to")); err != nil {
		return TimelineFilters{}, err
	}
	if filters.Page, err = parseInt(q.Get("page")); err != nil {
		return TimelineFilters{}, err
	}
	if filters.PageSize, err = parseInt(q.Get("page_size")); err != nil {
		return TimelineFilters{}, err
	}
	return filters, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.Join(httpx.ErrValidation, err)
	}
	return t, nil
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(httpx.ErrValidation, err)
	}
	return v, nil
}
