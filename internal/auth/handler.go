package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
	"github.com/vitrine-shop/vitrine/internal/shared"
)

const oauthStateKey = "oauth_state"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	provider       IdentityProvider
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	tokens         *TokenIssuer
	rbac           rbac.Middleware
	afterLogin     string
}

// HandlerConfig aggregates handler dependencies. Provider and Tokens may be
// nil, which disables the matching endpoints.
type HandlerConfig struct {
	Logger     *slog.Logger
	Service    *Service
	Provider   IdentityProvider
	Sessions   *shared.SessionManager
	CSRF       *shared.CSRFManager
	Tokens     *TokenIssuer
	RBAC       rbac.Middleware
	AfterLogin string
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		logger:         cfg.Logger,
		service:        cfg.Service,
		provider:       cfg.Provider,
		sessionManager: cfg.Sessions,
		csrfManager:    cfg.CSRF,
		tokens:         cfg.Tokens,
		rbac:           cfg.RBAC,
		afterLogin:     cfg.AfterLogin,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.afterLogin == "" {
		h.afterLogin = "/"
	}
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.handleLogin)
	r.Get("/callback", h.handleCallback)
	r.Get("/error", h.handleError)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePrincipal)
		r.Get("/session", h.handleSession)
		r.Get("/role", h.handleRole)
	})
	r.Group(func(r chi.Router) {
		// Any live account may mint a token; suspended ones are refused.
		r.Use(h.rbac.Require(rbac.AllRoles()...))
		r.Post("/token", h.handleToken)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Sign-in Unavailable", "identity provider is not configured")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, shared.ErrSessionMissing)
		return
	}
	state := rand.Text()
	sess.Set(oauthStateKey, state)
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Sign-in Unavailable", "identity provider is not configured")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrSessionMissing)
		return
	}

	expected := sess.Get(oauthStateKey)
	sess.Delete(oauthStateKey)
	state := r.FormValue("state")
	if expected == "" || state == "" || !hmac.Equal([]byte(expected), []byte(state)) {
		h.logger.Warn("oauth callback state mismatch")
		httpx.Problem(w, http.StatusBadRequest, "Authentication Failed", ErrStateMismatch.Error())
		return
	}
	if reason := r.FormValue("error"); reason != "" {
		h.redirectWithError(w, r, reason)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Authentication Failed", "missing authorization code")
		return
	}

	identity, err := h.provider.Identify(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth identify", slog.Any("error", err))
		h.redirectWithError(w, r, "identity")
		return
	}

	principal, err := h.service.SignIn(r.Context(), identity)
	if err != nil {
		if errors.Is(err, ErrSignInDenied) {
			h.redirectWithError(w, r, "AccessDenied")
			return
		}
		h.logger.Error("sign in", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	sess.SignIn(principal.ID, principal.Email, principal.Name)
	h.logger.Info("user signed in", slog.String("user_id", principal.ID))
	http.Redirect(w, r, h.afterLogin, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	User      rbac.Principal `json:"user"`
	CSRFToken string         `json:"csrf_token,omitempty"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	resp := sessionResponse{User: *principal}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && h.csrfManager != nil {
		token, err := h.csrfManager.EnsureToken(r.Context(), sess)
		if err != nil {
			h.logger.Warn("csrf token", slog.Any("error", err))
		}
		resp.CSRFToken = token
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRole(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	role, err := h.service.CurrentRole(r.Context(), *principal)
	if err != nil {
		h.logger.Error("current role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Tokens Unavailable", "token signing is not configured")
		return
	}
	// Bearer tokens cannot be exchanged for fresh ones.
	if r.Header.Get("Authorization") != "" {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "tokens are issued to browser sessions only")
		return
	}
	d, _ := rbac.DecisionFromContext(r.Context())
	token, err := h.tokens.Issue(*d.Principal)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, token)
}

var signInErrors = map[string]string{
	"AccessDenied":  "This account is not allowed to sign in.",
	"access_denied": "Sign-in was cancelled.",
	"identity":      "The identity provider could not confirm your account.",
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("error")
	msg, ok := signInErrors[reason]
	if !ok {
		msg = "Sign-in failed."
	}
	status := http.StatusBadRequest
	if reason == "AccessDenied" {
		status = http.StatusForbidden
	}
	httpx.Problem(w, status, "Sign-in Failed", msg)
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/auth/error?error="+url.QueryEscape(reason), http.StatusSeeOther)
}
