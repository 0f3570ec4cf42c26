package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/users"
)

// Users is the account directory authentication runs against.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	Register(ctx context.Context, in users.RegisterInput) (*users.User, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

// dummyHash keeps unknown-email logins as slow as wrong-password ones. It is
// computed on the first failed lookup, not at package init.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("stackit-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: dummy hash: %v", err))
	}
	return hash
})

// Service wraps authentication business rules.
type Service struct {
	users    Users
	sessions SessionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(users Users, sessions SessionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, logger: logger, now: time.Now}
}

// Authenticate validates email/password credentials. Inactive accounts are
// rejected; banned accounts may log in and are treated as guests by RBAC.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("touch last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return user, nil
}

// Register creates an account through the users service.
func (s *Service) Register(ctx context.Context, in users.RegisterInput) (*users.User, error) {
	return s.users.Register(ctx, in)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, ttl time.Duration, ip, ua string) error {
	now := s.now()
	return s.sessions.CreateSession(ctx, SessionRecord{ID: id, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl), IP: ip, UserAgent: ua})
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}

// PurgeExpiredSessions deletes expired session rows.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx, s.now())
}
