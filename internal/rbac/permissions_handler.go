package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/view"
)

// PermissionsHandler renders the role catalog.
type PermissionsHandler struct {
	logger    *slog.Logger
	catalog   *Catalog
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, catalog *Catalog, templates *view.Engine, csrf *shared.CSRFManager, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, catalog: catalog, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(SystemSettings))
		r.Get("/", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/me", h.showOwn)
	})
}

// RoleView is a resolved role row for templates.
type RoleView struct {
	Role        Role
	DisplayName string
	Description string
	Inherits    []Role
	Permissions []string
}

func (h *PermissionsHandler) roleViews() []RoleView {
	roles := h.catalog.Roles()
	views := make([]RoleView, 0, len(roles))
	for _, role := range roles {
		def, _ := h.catalog.Definition(role)
		views = append(views, RoleView{
			Role:        role,
			DisplayName: def.DisplayName,
			Description: def.Description,
			Inherits:    def.Inherits,
			Permissions: PermissionStrings(h.catalog.RolePermissions(role).Sorted()),
		})
	}
	return views
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/permissions/list.html", map[string]any{
		"Roles":       h.roleViews(),
		"Permissions": PermissionStrings(AllPermissions()),
	}, http.StatusOK)
}

func (h *PermissionsHandler) showOwn(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	h.render(w, r, "pages/permissions/me.html", map[string]any{
		"RoleName":    actor.RoleDisplayName(),
		"Permissions": PermissionStrings(actor.Permissions()),
	}, http.StatusOK)
}

func (h *PermissionsHandler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Permissions",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Viewer:      ViewerOf(ActorFromContext(r.Context())),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
