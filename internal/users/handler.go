package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/view"
)

// Handler serves the user administration pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers user routes. Moderators see the pages; each
// mutation is additionally gated by the request Actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModerator())
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
		r.Post("/{id}/role", h.updateRole)
		r.Post("/{id}/ban", h.ban)
		r.Post("/{id}/unban", h.unban)
		r.Post("/{id}/permissions", h.changePermission)
	})
}

type formErrors map[string]string

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.service.List(r.Context(), page, 0)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{"Result": result}, http.StatusOK)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrNotFound) {
			status = http.StatusNotFound
		} else {
			h.logger.Error("load user failed", slog.Any("error", err))
		}
		h.render(w, r, "pages/users/detail.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, status)
		return
	}
	h.render(w, r, "pages/users/detail.html", map[string]any{
		"User":            user,
		"AssignableRoles": rbac.AssignableRoles,
		"AllPermissions":  rbac.PermissionStrings(rbac.AllPermissions()),
	}, http.StatusOK)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	role, err := rbac.ParseRole(r.PostFormValue("role"))
	if err == nil {
		err = rbac.ActorFromContext(r.Context()).UpdateUserRole(r.Context(), id, role)
	}
	h.finish(w, r, id, "Role updated", err)
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := rbac.ActorFromContext(r.Context()).BanUser(r.Context(), id, r.PostFormValue("reason"))
	h.finish(w, r, id, "User banned", err)
}

func (h *Handler) unban(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := rbac.ActorFromContext(r.Context()).UnbanUser(r.Context(), id)
	h.finish(w, r, id, "User unbanned", err)
}

func (h *Handler) changePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	actor := rbac.ActorFromContext(ctx)
	perm, err := rbac.ParsePermission(r.PostFormValue("permission"))
	if err != nil {
		h.finish(w, r, id, "", err)
		return
	}
	switch r.PostFormValue("op") {
	case "grant":
		err = actor.GrantPermission(ctx, id, perm)
	case "revoke":
		err = actor.RevokeGrant(ctx, id, perm)
	case "restrict":
		err = actor.RestrictPermission(ctx, id, perm)
	case "unrestrict":
		err = actor.LiftRestriction(ctx, id, perm)
	default:
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.finish(w, r, id, "Permissions updated", err)
}

// finish redirects back to the user page with a flash describing err.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, id, success string, err error) {
	location := "/users/" + id
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, location, "success", success)
	case errors.Is(err, rbac.ErrInsufficientPrivilege):
		h.redirectWithFlash(w, r, location, "danger", "You are not allowed to do that.")
	case errors.Is(err, rbac.ErrUnknownRole), errors.Is(err, rbac.ErrRoleNotAssignable):
		h.redirectWithFlash(w, r, location, "danger", "That role cannot be assigned.")
	case errors.Is(err, rbac.ErrUnknownPermission):
		h.redirectWithFlash(w, r, location, "danger", "Unknown permission.")
	case errors.Is(err, shared.ErrNotFound):
		h.redirectWithFlash(w, r, "/users", "danger", shared.UserSafeMessage(err))
	default:
		h.logger.Error("user admin action failed", slog.String("user_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, location, "danger", shared.UserSafeMessage(err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Users",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Viewer:      rbac.ViewerOf(rbac.ActorFromContext(r.Context())),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
