package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackit-qa/stackit/internal/platform/db"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
)

// Repository is the persistence port of the users service.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	UpdateRole(ctx context.Context, id string, role rbac.Role) error
	SetBanned(ctx context.Context, id string, banned bool, reason, bannedBy string) error
	AddCustomPermission(ctx context.Context, id string, p rbac.Permission) error
	RemoveCustomPermission(ctx context.Context, id string, p rbac.Permission) error
	AddRestrictedPermission(ctx context.Context, id string, p rbac.Permission) error
	RemoveRestrictedPermission(ctx context.Context, id string, p rbac.Permission) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectUser = `SELECT id::text, username, email, password_hash, role,
	custom_permissions, restricted_permissions, is_active, is_banned,
	COALESCE(ban_reason, ''), banned_at, COALESCE(banned_by::text, ''),
	last_login_at, created_at, updated_at
	FROM users`

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, selectUser+` WHERE id = $1::uuid`, id)
}

// FindByEmail fetches a user by case-folded email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, selectUser+` WHERE email = $1`, email)
}

// FindByUsername fetches a user by case-insensitive username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, selectUser+` WHERE lower(username) = $1`, username)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: find: %w", err)
	}
	return user, nil
}

// Create inserts user and fills its timestamps.
func (r *PGRepository) Create(ctx context.Context, user *User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, custom_permissions, restricted_permissions, is_active)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role),
		rbac.PermissionStrings(user.CustomPermissions), rbac.PermissionStrings(user.RestrictedPermissions), user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("users: create: %w", err)
	}
	return nil
}

// List returns a page of users, newest first, with the total count.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	rows, err := r.pool.Query(ctx, selectUser+` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("users: list scan: %w", err)
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	return out, total, nil
}

// UpdateRole sets the role of id.
func (r *PGRepository) UpdateRole(ctx context.Context, id string, role rbac.Role) error {
	return r.exec(ctx, "update role",
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1::uuid`, id, string(role))
}

// SetBanned bans or unbans id. Unbanning clears the ban metadata.
func (r *PGRepository) SetBanned(ctx context.Context, id string, banned bool, reason, bannedBy string) error {
	return r.exec(ctx, "set banned",
		`UPDATE users SET
			is_banned = $2,
			ban_reason = CASE WHEN $2 THEN NULLIF($3, '') END,
			banned_at = CASE WHEN $2 THEN NOW() END,
			banned_by = CASE WHEN $2 THEN NULLIF($4, '')::uuid END,
			updated_at = NOW()
		 WHERE id = $1::uuid`, id, banned, reason, bannedBy)
}

// AddCustomPermission grants p to id. Granting twice is a no-op.
func (r *PGRepository) AddCustomPermission(ctx context.Context, id string, p rbac.Permission) error {
	return r.exec(ctx, "add custom permission",
		`UPDATE users SET custom_permissions = array_append(array_remove(custom_permissions, $2), $2), updated_at = NOW() WHERE id = $1::uuid`, id, p.String())
}

// RemoveCustomPermission revokes a custom grant.
func (r *PGRepository) RemoveCustomPermission(ctx context.Context, id string, p rbac.Permission) error {
	return r.exec(ctx, "remove custom permission",
		`UPDATE users SET custom_permissions = array_remove(custom_permissions, $2), updated_at = NOW() WHERE id = $1::uuid`, id, p.String())
}

// AddRestrictedPermission restricts p for id.
func (r *PGRepository) AddRestrictedPermission(ctx context.Context, id string, p rbac.Permission) error {
	return r.exec(ctx, "add restricted permission",
		`UPDATE users SET restricted_permissions = array_append(array_remove(restricted_permissions, $2), $2), updated_at = NOW() WHERE id = $1::uuid`, id, p.String())
}

// RemoveRestrictedPermission lifts a restriction.
func (r *PGRepository) RemoveRestrictedPermission(ctx context.Context, id string, p rbac.Permission) error {
	return r.exec(ctx, "remove restricted permission",
		`UPDATE users SET restricted_permissions = array_remove(restricted_permissions, $2), updated_at = NOW() WHERE id = $1::uuid`, id, p.String())
}

// TouchLastLogin records a successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "touch last login",
		`UPDATE users SET last_login_at = $2 WHERE id = $1::uuid`, id, at.UTC())
}

func (r *PGRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("users: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// scanUser reads one row in selectUser column order. Unknown permission
// tokens in stored arrays are dropped.
func scanUser(row pgx.Row) (*User, error) {
	var (
		u          User
		role       string
		custom     []string
		restricted []string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role,
		&custom, &restricted, &u.IsActive, &u.IsBanned,
		&u.BanReason, &u.BannedAt, &u.BannedBy,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = rbac.Role(role)
	u.CustomPermissions, _ = rbac.ParsePermissions(custom)
	u.RestrictedPermissions, _ = rbac.ParsePermissions(restricted)
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
