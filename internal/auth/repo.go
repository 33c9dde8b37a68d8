package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitrine-shop/vitrine/internal/rbac"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	rbac.RoleStore
	// UpsertUser creates the user on first sign-in and refreshes profile
	// fields afterwards. Role and status are never touched.
	UpsertUser(ctx context.Context, id Identity) (*rbac.UserRecord, error)
	// PromoteToAdmin raises a User-ranked record to Admin and reports whether it changed.
	PromoteToAdmin(ctx context.Context, userID string) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindUserRecord implements rbac.RoleStore.
func (r *PGRepository) FindUserRecord(ctx context.Context, id string) (*rbac.UserRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT id, email, name, role, active, deleted_at FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	return rec, nil
}

// UpsertUser inserts or refreshes the user identified by email.
func (r *PGRepository) UpsertUser(ctx context.Context, id Identity) (*rbac.UserRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, image)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, image = EXCLUDED.image, updated_at = NOW()
		RETURNING id, email, name, role, active, deleted_at`,
		uuid.NewString(), id.Email, id.Name, id.Picture)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("auth: upsert user: %w", err)
	}
	return rec, nil
}

// PromoteToAdmin sets role Admin when the stored role is User.
func (r *PGRepository) PromoteToAdmin(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = 'Admin', updated_at = NOW() WHERE id = $1 AND role = 'User'`, userID)
	if err != nil {
		return false, fmt.Errorf("auth: promote user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanRecord(row pgx.Row) (*rbac.UserRecord, error) {
	var (
		rec  rbac.UserRecord
		role string
	)
	if err := row.Scan(&rec.ID, &rec.Email, &rec.Name, &role, &rec.Active, &rec.DeletedAt); err != nil {
		return nil, err
	}
	rec.Role = rbac.Role(role)
	return &rec, nil
}
