package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Service owns account lifecycle and persists privilege changes.
type Service struct {
	repo     Repository
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
	hashCost int
	now      func() time.Time
}

// NewService builds Service instance. audit may be nil.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		logger:   logger,
		validate: newValidator(),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// newValidator returns a validator with the "username" tag registered.
func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("users: register username validation: %v", err))
	}
	return v
}

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NormalizeEmail trims and case-folds an email address.
func (s *Service) NormalizeEmail(email string) string {
	return fold(strings.TrimSpace(email))
}

// Register validates input and creates an active account with the default role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = s.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = validationMessage(fe)
			}
			return nil, &ValidationError{Fields: fields}
		}
		return nil, fmt.Errorf("users: validate: %w", err)
	}

	if _, err := s.repo.FindByUsername(ctx, fold(in.Username)); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         rbac.DefaultRole,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.record(ctx, "", "user.register", user.ID, map[string]any{"username": user.Username})
	return user, nil
}

// GetByID returns the user with id.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// GetByEmail returns the user registered with email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, s.NormalizeEmail(email))
}

// GetByUsername returns the user with username, ignoring case.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, fold(strings.TrimSpace(username)))
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, page, perPage int) (ListResult, error) {
	p := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return ListResult{}, err
	}
	p = shared.NewPagination(p.Page, p.PerPage, total)
	return ListResult{Users: users, Page: p.Page, PerPage: p.PerPage, Total: p.Total, TotalPages: p.TotalPages}, nil
}

// Subject loads the authorization view of userID.
func (s *Service) Subject(ctx context.Context, userID string) (*rbac.Subject, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Subject(), nil
}

// UpdateRole persists a role change made by actorID.
func (s *Service) UpdateRole(ctx context.Context, userID string, role rbac.Role, actorID string) error {
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.role", userID, map[string]any{"role": role.String()})
	return nil
}

// SetBanned persists a ban or unban made by actorID.
func (s *Service) SetBanned(ctx context.Context, userID string, banned bool, reason, actorID string) error {
	if err := s.repo.SetBanned(ctx, userID, banned, reason, actorID); err != nil {
		return err
	}
	action := "user.unban"
	meta := map[string]any{}
	if banned {
		action = "user.ban"
		meta["reason"] = reason
	}
	s.record(ctx, actorID, action, userID, meta)
	return nil
}

// AddCustomPermission persists a custom grant.
func (s *Service) AddCustomPermission(ctx context.Context, userID string, p rbac.Permission, actorID string) error {
	return s.permissionChange(ctx, "user.permission.grant", userID, p, actorID, s.repo.AddCustomPermission)
}

// RemoveCustomPermission persists a revoked grant.
func (s *Service) RemoveCustomPermission(ctx context.Context, userID string, p rbac.Permission, actorID string) error {
	return s.permissionChange(ctx, "user.permission.revoke", userID, p, actorID, s.repo.RemoveCustomPermission)
}

// AddRestrictedPermission persists a restriction.
func (s *Service) AddRestrictedPermission(ctx context.Context, userID string, p rbac.Permission, actorID string) error {
	return s.permissionChange(ctx, "user.permission.restrict", userID, p, actorID, s.repo.AddRestrictedPermission)
}

// RemoveRestrictedPermission persists a lifted restriction.
func (s *Service) RemoveRestrictedPermission(ctx context.Context, userID string, p rbac.Permission, actorID string) error {
	return s.permissionChange(ctx, "user.permission.unrestrict", userID, p, actorID, s.repo.RemoveRestrictedPermission)
}

func (s *Service) permissionChange(ctx context.Context, action, userID string, p rbac.Permission, actorID string, apply func(context.Context, string, rbac.Permission) error) error {
	if err := apply(ctx, userID, p); err != nil {
		return err
	}
	s.record(ctx, actorID, action, userID, map[string]any{"permission": p.String()})
	return nil
}

// TouchLastLogin stamps a successful login.
func (s *Service) TouchLastLogin(ctx context.Context, userID string) error {
	return s.repo.TouchLastLogin(ctx, userID, s.now())
}

// record writes an audit entry. Audit failures are logged, not returned.
func (s *Service) record(ctx context.Context, actorID, action, userID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: userID, Meta: meta})
	if err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.String("user_id", userID), slog.Any("error", err))
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "may only contain letters, digits and underscores"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

var (
	_ rbac.UserStore     = (*Service)(nil)
	_ rbac.SubjectLoader = (*Service)(nil)
)
