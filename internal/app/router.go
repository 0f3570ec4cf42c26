package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stackit-qa/stackit/internal/auth"
	"github.com/stackit-qa/stackit/internal/content"
	"github.com/stackit-qa/stackit/internal/moderation"
	"github.com/stackit-qa/stackit/internal/observability"
	"github.com/stackit-qa/stackit/internal/platform/httpx"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/users"
	"github.com/stackit-qa/stackit/internal/view"
	"github.com/stackit-qa/stackit/jobs"
	"github.com/stackit-qa/stackit/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	ContentHandler     *content.Handler
	ModerationHandler  *moderation.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with StackIt defaults. Health, metrics
// and static assets bypass sessions and CSRF.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	root := chi.NewRouter()
	root.Use(chimw.Logger)

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		root.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r := chi.NewRouter()
	r.Use(MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		RBAC:           params.RBACMiddleware,
	})...)

	pages := pageRenderer{logger: params.Logger, templates: params.Templates, csrf: params.CSRFManager}

	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, "pages/landing.html", "StackIt", nil)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		if !actor.IsAuthenticated() {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		appEnv := ""
		if params.Config != nil {
			appEnv = params.Config.AppEnv
		}
		pages.render(w, r, "pages/home.html", "StackIt", map[string]any{
			"RoleName":    actor.RoleDisplayName(),
			"Permissions": rbac.PermissionStrings(actor.Permissions()),
			"AppEnv":      appEnv,
		})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.ContentHandler != nil {
		r.Group(params.ContentHandler.MountRoutes)
	}
	if params.ModerationHandler != nil {
		r.Route("/moderation", params.ModerationHandler.MountRoutes)
		r.Route("/notifications", params.ModerationHandler.MountNotificationRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAdmin())
			params.JobHandler.MountRoutes(r)
		})
	}

	root.Mount("/", r)
	return root
}

type pageRenderer struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
}

func (p pageRenderer) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := p.csrf.EnsureToken(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Viewer:      rbac.ViewerOf(rbac.ActorFromContext(r.Context())),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.templates.Render(w, template, viewData); err != nil {
		p.logger.Error("render page", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with a one hour Cache-Control header.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
