package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stackit-qa/stackit/internal/shared"
)

// DenialRecorder counts rejected authorization checks.
type DenialRecorder interface {
	RecordDenial(rule string)
}

// Users is the collaborator the middleware binds actors against.
type Users interface {
	SubjectLoader
	UserStore
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Catalog *Catalog
	Users   Users
	Logger  *slog.Logger
	Denials DenialRecorder
}

// Bind resolves the session user and stores a fresh Actor in the request
// context. Missing, unknown or unreadable users are bound as guests.
func (m Middleware) Bind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var subject *Subject
		if userID := currentUserID(r); userID != "" && m.Users != nil {
			loaded, err := m.Users.Subject(ctx, userID)
			switch {
			case err == nil:
				subject = loaded
			case errors.Is(err, shared.ErrNotFound):
				m.logWarn("rbac bind stale session user", slog.String("user_id", userID))
			default:
				m.logWarn("rbac bind load subject", slog.String("user_id", userID), slog.Any("error", err))
			}
		}
		var store UserStore
		if m.Users != nil {
			store = m.Users
		}
		actor := NewActor(m.Catalog, store, subject)
		next.ServeHTTP(w, r.WithContext(ContextWithActor(ctx, actor)))
	})
}

// RequireAny ensures the current actor has at least one of the permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	rule := "any:" + strings.Join(PermissionStrings(perms), ",")
	return m.require(rule, func(a *Actor) bool {
		return len(perms) == 0 || a.HasAnyPermission(perms...)
	})
}

// RequireAll ensures the current actor has all of the permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	rule := "all:" + strings.Join(PermissionStrings(perms), ",")
	return m.require(rule, func(a *Actor) bool {
		return a.HasAllPermissions(perms...)
	})
}

// RequireAuthenticated rejects guests and disqualified users.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.require("authenticated", func(a *Actor) bool {
		return a.IsAuthenticated()
	})
}

// RequireAdmin rejects everyone but active administrators.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.require("admin", func(a *Actor) bool {
		return a.IsAdmin()
	})
}

// RequireModerator rejects actors that cannot moderate.
func (m Middleware) RequireModerator() func(http.Handler) http.Handler {
	return m.require("moderator", func(a *Actor) bool {
		return a.CanModerate()
	})
}

func (m Middleware) require(rule string, allow func(*Actor) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if allow(actor) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Denials != nil {
				m.Denials.RecordDenial(rule)
			}
			if m.Logger != nil {
				m.Logger.Info("rbac denied", slog.String("rule", rule), slog.String("user_id", actor.ID()), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) logWarn(msg string, attrs ...any) {
	if m.Logger != nil {
		m.Logger.Warn(msg, attrs...)
	}
}

func currentUserID(r *http.Request) string {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	return strings.TrimSpace(sess.User())
}
