package storage

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// Handler exposes signed URL endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers storage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(Uploaders...))
	r.Get("/upload-url", h.uploadURL)
	r.Get("/delete-url", h.deleteURL)
}

func (h *Handler) uploadURL(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.UploadURL(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, "upload url", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deleteURL(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteURL(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, "delete url", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, httpx.ErrValidation) {
		h.logger.ErrorContext(r.Context(), "storage "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
