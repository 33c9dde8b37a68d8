package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// Service wraps sign-in business rules.
type Service struct {
	repo     Repository
	admin    rbac.SuperAdmin
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(repo Repository, superAdminEmail string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		admin:    rbac.NewSuperAdmin(superAdminEmail),
		logger:   logger,
		validate: validator.New(),
	}
}

// SignIn records the identity and decides whether it may start a session.
// The super-admin always may; everyone else needs a live, active account.
func (s *Service) SignIn(ctx context.Context, id Identity) (rbac.Principal, error) {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	id.Name = strings.TrimSpace(id.Name)
	if err := s.validate.Struct(id); err != nil {
		return rbac.Principal{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	rec, err := s.repo.UpsertUser(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	principal := rbac.Principal{ID: rec.ID, Email: rec.Email, Name: rec.Name}

	if s.admin.Matches(rec.Email) {
		if _, err := s.syncSuperAdmin(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "auth super-admin role sync", slog.Any("error", err))
		}
		return principal, nil
	}
	if rec.IsDeleted() || !rec.Active {
		s.logger.InfoContext(ctx, "auth sign-in denied",
			slog.String("user_id", rec.ID),
			slog.Bool("deleted", rec.IsDeleted()),
			slog.Bool("active", rec.Active))
		return rbac.Principal{}, ErrSignInDenied
	}
	return principal, nil
}

// CurrentRole returns the stored role of p. A missing record reads as User
// and the super-admin record is promoted to Admin on the way.
func (s *Service) CurrentRole(ctx context.Context, p rbac.Principal) (rbac.Role, error) {
	rec, err := s.repo.FindUserRecord(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		if s.admin.Matches(p.Email) {
			return rbac.RoleAdmin, nil
		}
		return rbac.RoleUser, nil
	}
	if s.admin.Matches(rec.Email) {
		role, err := s.syncSuperAdmin(ctx, rec)
		if err != nil {
			s.logger.WarnContext(ctx, "auth super-admin role sync", slog.Any("error", err))
		}
		return role, nil
	}
	return rec.Role, nil
}

func (s *Service) syncSuperAdmin(ctx context.Context, rec *rbac.UserRecord) (rbac.Role, error) {
	if rec.Role != rbac.RoleUser {
		return rec.Role, nil
	}
	changed, err := s.repo.PromoteToAdmin(ctx, rec.ID)
	if err != nil {
		return rbac.RoleAdmin, err
	}
	if changed {
		s.logger.InfoContext(ctx, "auth super-admin promoted", slog.String("user_id", rec.ID))
	}
	return rbac.RoleAdmin, nil
}
