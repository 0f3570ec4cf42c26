package users

import (
	"fmt"
	"slices"
	"time"

	"github.com/stackit-qa/stackit/internal/platform/httpx"
	"github.com/stackit-qa/stackit/internal/rbac"
)

// ErrDuplicate is returned when a username or email is already taken.
var ErrDuplicate = fmt.Errorf("users: username or email already taken: %w", httpx.ErrDuplicate)

// User is a StackIt account together with its authorization state.
// PasswordHash is never serialised so cached copies never carry it.
type User struct {
	ID                    string            `json:"id"`
	Username              string            `json:"username"`
	Email                 string            `json:"email"`
	PasswordHash          string            `json:"-"`
	Role                  rbac.Role         `json:"role"`
	CustomPermissions     []rbac.Permission `json:"custom_permissions,omitempty"`
	RestrictedPermissions []rbac.Permission `json:"restricted_permissions,omitempty"`
	IsActive              bool              `json:"is_active"`
	IsBanned              bool              `json:"is_banned"`
	BanReason             string            `json:"ban_reason,omitempty"`
	BannedAt              *time.Time        `json:"banned_at,omitempty"`
	BannedBy              string            `json:"banned_by,omitempty"`
	LastLoginAt           *time.Time        `json:"last_login_at,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// Subject converts the account to the view the authorization engine uses.
func (u *User) Subject() *rbac.Subject {
	if u == nil {
		return nil
	}
	return &rbac.Subject{
		ID:                    u.ID,
		Role:                  u.Role,
		IsActive:              u.IsActive,
		IsBanned:              u.IsBanned,
		CustomPermissions:     slices.Clone(u.CustomPermissions),
		RestrictedPermissions: slices.Clone(u.RestrictedPermissions),
	}
}

// RegisterInput carries the fields of a sign-up form.
type RegisterInput struct {
	Username string `validate:"required,min=3,max=30,username"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=72"`
}

// ListResult is one page of users, newest first.
type ListResult struct {
	Users      []User
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// ValidationError lists per-field problems with a form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("users: invalid input (%d fields)", len(e.Fields))
}

// Unwrap classifies validation failures for HTTP mapping.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}
