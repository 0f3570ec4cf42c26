package content

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stackit-qa/stackit/internal/platform/httpx"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
)

// Handler exposes the question, answer and comment API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the Q&A routes. Route guards reject callers without
// the base permission; ownership is checked by the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/questions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.QuestionRead))
			r.Get("/", h.listQuestions)
			r.Get("/{id}", h.showQuestion)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAuthenticated())
			r.With(h.rbac.RequireAny(rbac.QuestionCreate)).Post("/", h.askQuestion)
			r.Put("/{id}", h.editQuestion)
			r.Delete("/{id}", h.deleteQuestion)
			r.With(h.rbac.RequireAny(rbac.AnswerCreate)).Post("/{id}/answers", h.postAnswer)
		})
	})
	r.Route("/answers/{id}", func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Put("/", h.editAnswer)
		r.Delete("/", h.deleteAnswer)
		r.With(h.rbac.RequireAny(rbac.Voting...)).Post("/vote", h.vote)
		r.With(h.rbac.RequireAny(rbac.AnswerAccept)).Post("/accept", h.accept)
		r.With(h.rbac.RequireAny(rbac.CommentCreate)).Post("/comments", h.comment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Delete("/comments/{id}", h.deleteComment)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, httpx.ErrValidation),
		errors.Is(err, httpx.ErrForbidden),
		errors.Is(err, rbac.ErrInsufficientPrivilege),
		errors.Is(err, shared.ErrNotFound):
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actor(r *http.Request) *rbac.Actor {
	return rbac.ActorFromContext(r.Context())
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	result, err := h.service.ListQuestions(r.Context(), actor(r), ListFilter{Tag: q.Get("tag"), Search: q.Get("q")}, page, 0)
	if err != nil {
		h.fail(w, "list questions", err)
		return
	}
	questions := result.Questions
	if questions == nil {
		questions = []Question{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"questions":   questions,
		"page":        result.Page.Page,
		"total":       result.Page.Total,
		"total_pages": result.Page.TotalPages,
	})
}

func (h *Handler) showQuestion(w http.ResponseWriter, r *http.Request) {
	thread, err := h.service.Thread(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "show question", err)
		return
	}
	httpx.JSON(w, http.StatusOK, thread)
}

func (h *Handler) askQuestion(w http.ResponseWriter, r *http.Request) {
	var in QuestionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.AskQuestion(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, "ask question", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) editQuestion(w http.ResponseWriter, r *http.Request) {
	var in QuestionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.EditQuestion(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "edit question", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuestion(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postAnswer(w http.ResponseWriter, r *http.Request) {
	var in AnswerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.PostAnswer(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "post answer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) editAnswer(w http.ResponseWriter, r *http.Request) {
	var in AnswerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.EditAnswer(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "edit answer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) deleteAnswer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAnswer(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete answer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Vote VoteType `json:"vote"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Vote(r.Context(), actor(r), chi.URLParam(r, "id"), body.Vote)
	if err != nil {
		h.fail(w, "vote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Accept(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "accept answer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) comment(w http.ResponseWriter, r *http.Request) {
	var in CommentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Comment(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "comment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteComment(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete comment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
