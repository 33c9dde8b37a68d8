package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitrine-shop/vitrine/internal/platform/db"
	"github.com/vitrine-shop/vitrine/internal/rbac"
)

const userColumns = `id, email, name, image, role, active, deleted_at, created_at, updated_at`

// TxRepository exposes the mutations that run inside one transaction.
type TxRepository interface {
	// GetForUpdate locks a live user row. Missing and soft-deleted users yield ErrNotFound.
	GetForUpdate(ctx context.Context, id string) (User, error)
	SetRole(ctx context.Context, id string, role rbac.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindUserRecord implements rbac.RoleStore. Soft-deleted rows are returned so
// the policy can deny them explicitly.
func (r *Repository) FindUserRecord(ctx context.Context, id string) (*rbac.UserRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("users: find record: %w", err)
	}
	return user.Record(), nil
}

// List returns users matching filter ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Deleted {
		conds = append(conds, "deleted_at IS NOT NULL")
	} else {
		conds = append(conds, "deleted_at IS NULL")
	}
	if filter.ExcludeID != "" {
		add("id <> $%d", filter.ExcludeID)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		add("name ILIKE $%d", "%"+escapeLike(name)+"%")
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		add("role = ANY($%d)", roles)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY name, email`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) GetForUpdate(ctx context.Context, id string) (User, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (t *txRepo) SetRole(ctx context.Context, id string, role rbac.Role) error {
	return t.exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, string(role))
}

func (t *txRepo) SetActive(ctx context.Context, id string, active bool) error {
	return t.exec(ctx, `UPDATE users SET active = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, active)
}

func (t *txRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return t.exec(ctx, `UPDATE users SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
}

func (t *txRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Image, &role, &user.Active, &user.DeletedAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Role = rbac.Role(role)
	return user, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
