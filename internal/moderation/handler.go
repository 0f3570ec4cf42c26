package moderation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stackit-qa/stackit/internal/platform/httpx"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/view"
)

// Handler exposes the moderation API and log page.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers moderation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireModerator())
		r.Get("/menu", h.menu)
		r.Post("/actions", h.apply)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.SystemLogs))
		r.Get("/logs", h.listLogs)
	})
}

// MountNotificationRoutes registers the signed-in user's notification inbox.
func (h *Handler) MountNotificationRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated())
	r.Get("/", h.inbox)
	r.Post("/{id}/read", h.markRead)
}

type actionRequest struct {
	Action     string `json:"action" validate:"required"`
	TargetType string `json:"target_type" validate:"required"`
	TargetID   string `json:"target_id" validate:"required,uuid"`
	Reason     string `json:"reason" validate:"max=500"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req := Request{
		Action: Action(body.Action),
		Target: Target{Type: TargetType(body.TargetType), ID: body.TargetID},
		Reason: body.Reason,
	}
	log, err := h.service.Apply(r.Context(), rbac.ActorFromContext(r.Context()), req)
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, rbac.ErrInsufficientPrivilege) {
			h.logger.Error("moderation apply", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, log)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, err := h.service.Resolve(r.Context(), Target{Type: TargetType(q.Get("target_type")), ID: q.Get("target_id")})
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("moderation menu", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	actions := Menu(rbac.ActorFromContext(r.Context()), target)
	type item struct {
		Action         Action `json:"action"`
		RequiresReason bool   `json:"requires_reason"`
	}
	items := make([]item, 0, len(actions))
	for _, a := range actions {
		items = append(items, item{Action: a, RequiresReason: a.RequiresReason()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actions": items})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.service.ListLogs(r.Context(), page, 0)
	if err != nil {
		h.logger.Error("list moderation logs", slog.Any("error", err))
		h.render(w, r, map[string]any{"Errors": map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, map[string]any{"Logs": result.Logs, "Page": result.Page}, http.StatusOK)
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.service.Inbox(r.Context(), rbac.ActorFromContext(r.Context()), page, 0)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := result.Items
	if items == nil {
		items = []InboxItem{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"page":          result.Page.Page,
		"total":         result.Page.Total,
	})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid notification id")
		return
	}
	if err := h.service.MarkRead(r.Context(), rbac.ActorFromContext(r.Context()), id); err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("mark notification read", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Moderation log",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Viewer:      rbac.ViewerOf(rbac.ActorFromContext(r.Context())),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/moderation/logs.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
