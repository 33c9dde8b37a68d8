package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vitrine-shop/vitrine/internal/platform/httpx"
	"github.com/vitrine-shop/vitrine/internal/rbac"
	"github.com/vitrine-shop/vitrine/internal/shared"
)

// Managers may list, update and delete users.
var Managers = rbac.Roles(rbac.RoleAdmin, rbac.RoleModerator)

var (
	// ErrNotFound is returned when the target user is missing or soft-deleted.
	ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)
	// ErrNoChanges is returned when an update would not modify anything.
	ErrNoChanges = fmt.Errorf("%w: nothing to update", httpx.ErrValidation)
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]User, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records user-management mutations.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// NotifierPort queues account notices.
type NotifierPort interface {
	NotifyAccount(ctx context.Context, notice AccountNotice) error
}

// ServiceConfig carries optional collaborators.
type ServiceConfig struct {
	Audit    AuditPort
	Notifier NotifierPort
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service handles user business logic. Every exported operation authorizes
// its caller on each call.
type Service struct {
	repo       RepositoryPort
	authorizer *rbac.Authorizer
	audit      AuditPort
	notifier   NotifierPort
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time

	list   rbac.Guarded[ListFilter, []User]
	update rbac.Guarded[UpdateInput, User]
	remove rbac.Guarded[string, User]
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, authorizer *rbac.Authorizer, cfg ServiceConfig) *Service {
	s := &Service{
		repo:       repo,
		authorizer: authorizer,
		audit:      cfg.Audit,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		validate:   validator.New(),
		now:        cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.list = rbac.Guard[ListFilter, []User](authorizer, Managers, s.listUsers)
	s.update = rbac.Guard[UpdateInput, User](authorizer, Managers, s.updateUser)
	s.remove = rbac.Guard[string, User](authorizer, Managers, s.deleteUser)
	return s
}

// ListUsers returns users matching filter, never including the caller.
func (s *Service) ListUsers(ctx context.Context, p *rbac.Principal, filter ListFilter) ([]User, error) {
	return s.list(ctx, p, filter)
}

// UpdateUser changes the role and/or active flag of another user.
func (s *Service) UpdateUser(ctx context.Context, p *rbac.Principal, input UpdateInput) (User, error) {
	return s.update(ctx, p, input)
}

// DeleteUser soft-deletes another user.
func (s *Service) DeleteUser(ctx context.Context, p *rbac.Principal, id string) (User, error) {
	return s.remove(ctx, p, id)
}

func (s *Service) listUsers(ctx context.Context, d rbac.Decision, filter ListFilter) ([]User, error) {
	if err := s.validate.Struct(filter); err != nil {
		return nil, validationError(err)
	}
	filter.ExcludeID = d.Principal.ID
	return s.repo.List(ctx, filter)
}

func (s *Service) updateUser(ctx context.Context, d rbac.Decision, input UpdateInput) (User, error) {
	input.ID = strings.TrimSpace(input.ID)
	if err := s.authorizer.CheckSelfService(ctx, d.Actor(), input.ID, knownRole(input.Role)); err != nil {
		return User{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return User{}, validationError(err)
	}
	if input.Active == nil && input.Role == nil {
		return User{}, ErrNoChanges
	}

	var (
		updated User
		notices []AccountNotice
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}
		notices = notices[:0]
		if input.Role != nil && *input.Role != current.Role {
			if err := tx.SetRole(ctx, current.ID, *input.Role); err != nil {
				return err
			}
			current.Role = *input.Role
			notices = append(notices, s.notice(d, current, NoticeRoleChanged))
		}
		if input.Active != nil && *input.Active != current.Active {
			if err := tx.SetActive(ctx, current.ID, *input.Active); err != nil {
				return err
			}
			current.Active = *input.Active
			kind := NoticeSuspended
			if current.Active {
				kind = NoticeReactivated
			}
			notices = append(notices, s.notice(d, current, kind))
		}
		if len(notices) == 0 {
			return ErrNoChanges
		}
		updated = current
		return nil
	})
	if err != nil {
		return User{}, err
	}

	meta := map[string]any{"role": string(updated.Role), "active": updated.Active}
	s.record(ctx, d, "user.update", updated.ID, meta)
	for _, n := range notices {
		s.notify(ctx, n)
	}
	return updated, nil
}

// knownRole hides unknown roles from the rank check so they surface as
// validation errors.
func knownRole(r *rbac.Role) *rbac.Role {
	if r == nil || !r.Valid() {
		return nil
	}
	return r
}

func (s *Service) deleteUser(ctx context.Context, d rbac.Decision, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: id is required", httpx.ErrValidation)
	}
	if err := s.authorizer.CheckSelfService(ctx, d.Actor(), id, nil); err != nil {
		return User{}, err
	}

	var deleted User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.SoftDelete(ctx, current.ID, at); err != nil {
			return err
		}
		current.DeletedAt = &at
		current.UpdatedAt = at
		deleted = current
		return nil
	})
	if err != nil {
		return User{}, err
	}

	s.record(ctx, d, "user.delete", deleted.ID, map[string]any{"email": deleted.Email})
	s.notify(ctx, s.notice(d, deleted, NoticeDeleted))
	return deleted, nil
}

func (s *Service) notice(d rbac.Decision, u User, kind NoticeKind) AccountNotice {
	return AccountNotice{UserID: u.ID, Email: u.Email, Kind: kind, Role: u.Role, ActorID: d.Principal.ID}
}

// record writes an audit entry. The mutation has already committed, so a
// failure is only logged.
func (s *Service) record(ctx context.Context, d rbac.Decision, action, targetID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  d.Principal.ID,
		Action:   action,
		Entity:   "user",
		EntityID: targetID,
		Meta:     meta,
		At:       s.now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "users audit", slog.String("action", action), slog.String("user_id", targetID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n AccountNotice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAccount(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "users notice enqueue", slog.String("kind", string(n.Kind)), slog.String("user_id", n.UserID), slog.Any("error", err))
	}
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, ", "))
}
