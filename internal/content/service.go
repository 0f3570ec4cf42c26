package content

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"

	"github.com/stackit-qa/stackit/internal/platform/httpx"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
)

// Service applies the Q&A rules on behalf of an Actor.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
	rich     *bluemonday.Policy
}

// NewService builds Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		logger:   logger,
		validate: validator.New(),
		rich:     bluemonday.UGCPolicy(),
	}
}

func denied(res rbac.Resource, act rbac.Action) error {
	return fmt.Errorf("content: %s %s: %w", act, res, rbac.ErrInsufficientPrivilege)
}

// authorize checks the resource:action permission and, for changes to
// existing content, that actor owns it or can moderate it. Content whose
// author is gone is left to moderators.
func authorize(actor *rbac.Actor, res rbac.Resource, act rbac.Action, owner string) error {
	if !actor.CanPerformAction(rbac.ResourceAction{Resource: res, Action: act, OwnerID: owner}) {
		return denied(res, act)
	}
	var ok bool
	switch act {
	case rbac.ActionUpdate, rbac.ActionAccept:
		ok = actor.CanEdit(owner)
	case rbac.ActionDelete:
		ok = actor.CanDelete(owner)
	case rbac.ActionVote:
		ok = actor.CanVote(owner)
	default:
		ok = true
	}
	if !ok {
		return denied(res, act)
	}
	return nil
}

// visible reports whether actor may see content in state st.
func visible(actor *rbac.Actor, st State) bool {
	return st.Visible() || actor.CanModerate()
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

// normalizeTags trims, case-folds and de-duplicates tags, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = cases.Fold().String(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Service) cleanQuestion(in QuestionInput) QuestionInput {
	return QuestionInput{
		Title: strings.TrimSpace(in.Title),
		Body:  strings.TrimSpace(s.rich.Sanitize(in.Body)),
		Tags:  normalizeTags(in.Tags),
	}
}

// AskQuestion creates a question authored by actor. Bodies keep a safe
// subset of HTML; titles and tags are plain text.
func (s *Service) AskQuestion(ctx context.Context, actor *rbac.Actor, in QuestionInput) (*Question, error) {
	if err := authorize(actor, rbac.ResourceQuestion, rbac.ActionCreate, ""); err != nil {
		return nil, err
	}
	in = s.cleanQuestion(in)
	if err := s.check(in); err != nil {
		return nil, err
	}
	q := &Question{ID: uuid.NewString(), AuthorID: actor.ID(), Title: in.Title, Body: in.Body, Tags: in.Tags}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("question asked", slog.String("question_id", q.ID), slog.String("author_id", q.AuthorID))
	return q, nil
}

// EditQuestion replaces the title, body and tags of a question.
func (s *Service) EditQuestion(ctx context.Context, actor *rbac.Actor, id string, in QuestionInput) (*Question, error) {
	q, err := s.question(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rbac.ResourceQuestion, rbac.ActionUpdate, q.AuthorID); err != nil {
		return nil, err
	}
	in = s.cleanQuestion(in)
	if err := s.check(in); err != nil {
		return nil, err
	}
	q.Title, q.Body, q.Tags = in.Title, in.Body, in.Tags
	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQuestion removes a question and everything under it.
func (s *Service) DeleteQuestion(ctx context.Context, actor *rbac.Actor, id string) error {
	q, err := s.question(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, rbac.ResourceQuestion, rbac.ActionDelete, q.AuthorID); err != nil {
		return err
	}
	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.logger.Info("question deleted", slog.String("question_id", id), slog.String("actor_id", actor.ID()))
	return nil
}

// QuestionPage is one page of questions.
type QuestionPage struct {
	Questions []Question
	Page      shared.Pagination
}

// ListQuestions returns one page of questions actor may read. Hidden and
// deleted questions are listed for moderators only.
func (s *Service) ListQuestions(ctx context.Context, actor *rbac.Actor, filter ListFilter, page, perPage int) (QuestionPage, error) {
	if err := authorize(actor, rbac.ResourceQuestion, rbac.ActionRead, ""); err != nil {
		return QuestionPage{}, err
	}
	filter.Tag = cases.Fold().String(strings.TrimSpace(filter.Tag))
	filter.Search = strings.TrimSpace(filter.Search)
	filter.IncludeHidden = actor.CanModerate()
	p := shared.NewPagination(page, perPage, 0)
	questions, total, err := s.repo.ListQuestions(ctx, filter, p.PerPage, p.Offset())
	if err != nil {
		return QuestionPage{}, err
	}
	return QuestionPage{Questions: questions, Page: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// Thread loads a question with the answers and comments actor may read.
func (s *Service) Thread(ctx context.Context, actor *rbac.Actor, id string) (*Thread, error) {
	if err := authorize(actor, rbac.ResourceQuestion, rbac.ActionRead, ""); err != nil {
		return nil, err
	}
	q, err := s.question(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	thread := &Thread{Question: *q, Answers: []Answer{}, Comments: map[string][]Comment{}}
	if actor.HasPermission(rbac.AnswerRead) {
		answers, err := s.repo.ListAnswers(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, a := range answers {
			if visible(actor, a.State) {
				thread.Answers = append(thread.Answers, a)
			}
		}
	}
	if actor.HasPermission(rbac.CommentRead) && len(thread.Answers) > 0 {
		comments, err := s.repo.ListComments(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, c := range comments {
			if visible(actor, c.State) {
				thread.Comments[c.AnswerID] = append(thread.Comments[c.AnswerID], c)
			}
		}
	}
	return thread, nil
}

// PostAnswer adds actor's answer to an open question.
func (s *Service) PostAnswer(ctx context.Context, actor *rbac.Actor, questionID string, in AnswerInput) (*Answer, error) {
	if err := authorize(actor, rbac.ResourceAnswer, rbac.ActionCreate, ""); err != nil {
		return nil, err
	}
	q, err := s.question(ctx, actor, questionID)
	if err != nil {
		return nil, err
	}
	if q.Locked {
		return nil, ErrLocked
	}
	in.Body = strings.TrimSpace(s.rich.Sanitize(in.Body))
	if err := s.check(in); err != nil {
		return nil, err
	}
	a := &Answer{ID: uuid.NewString(), QuestionID: q.ID, AuthorID: actor.ID(), Body: in.Body}
	if err := s.repo.CreateAnswer(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("answer posted", slog.String("answer_id", a.ID), slog.String("question_id", q.ID))
	return a, nil
}

// EditAnswer replaces the body of an answer.
func (s *Service) EditAnswer(ctx context.Context, actor *rbac.Actor, id string, in AnswerInput) (*Answer, error) {
	a, _, err := s.answer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rbac.ResourceAnswer, rbac.ActionUpdate, a.AuthorID); err != nil {
		return nil, err
	}
	in.Body = strings.TrimSpace(s.rich.Sanitize(in.Body))
	if err := s.check(in); err != nil {
		return nil, err
	}
	a.Body = in.Body
	if err := s.repo.UpdateAnswer(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAnswer removes an answer with its comments and votes.
func (s *Service) DeleteAnswer(ctx context.Context, actor *rbac.Actor, id string) error {
	a, _, err := s.answer(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, rbac.ResourceAnswer, rbac.ActionDelete, a.AuthorID); err != nil {
		return err
	}
	return s.repo.DeleteAnswer(ctx, id)
}

// Vote casts actor's vote on an answer. Authors cannot vote on their own
// answers; repeating a vote withdraws it.
func (s *Service) Vote(ctx context.Context, actor *rbac.Actor, answerID string, v VoteType) (VoteResult, error) {
	if !v.Valid() {
		return VoteResult{}, fmt.Errorf("%w: %q", ErrInvalidVote, v)
	}
	a, q, err := s.answer(ctx, actor, answerID)
	if err != nil {
		return VoteResult{}, err
	}
	if err := authorize(actor, rbac.ResourceAnswer, rbac.ActionVote, a.AuthorID); err != nil {
		return VoteResult{}, err
	}
	if q.Locked {
		return VoteResult{}, ErrLocked
	}
	return s.repo.Vote(ctx, actor.ID(), answerID, v)
}

// Accept marks an answer as the accepted one. Only the question's author or
// a moderator may accept.
func (s *Service) Accept(ctx context.Context, actor *rbac.Actor, answerID string) (*Answer, error) {
	a, q, err := s.answer(ctx, actor, answerID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, rbac.ResourceAnswer, rbac.ActionAccept, q.AuthorID); err != nil {
		return nil, err
	}
	if err := s.repo.AcceptAnswer(ctx, q.ID, a.ID); err != nil {
		return nil, err
	}
	a.IsAccepted = true
	s.logger.Info("answer accepted", slog.String("answer_id", a.ID), slog.String("question_id", q.ID))
	return a, nil
}

// Comment adds actor's comment to an answer on an open question.
func (s *Service) Comment(ctx context.Context, actor *rbac.Actor, answerID string, in CommentInput) (*Comment, error) {
	if err := authorize(actor, rbac.ResourceComment, rbac.ActionCreate, ""); err != nil {
		return nil, err
	}
	a, q, err := s.answer(ctx, actor, answerID)
	if err != nil {
		return nil, err
	}
	if q.Locked {
		return nil, ErrLocked
	}
	in.Body = strings.TrimSpace(in.Body)
	if err := s.check(in); err != nil {
		return nil, err
	}
	c := &Comment{ID: uuid.NewString(), AnswerID: a.ID, AuthorID: actor.ID(), Body: in.Body}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes a comment.
func (s *Service) DeleteComment(ctx context.Context, actor *rbac.Actor, id string) error {
	if uuid.Validate(id) != nil {
		return shared.ErrNotFound
	}
	c, err := s.repo.FindComment(ctx, id)
	if err != nil {
		return err
	}
	if !visible(actor, c.State) {
		return shared.ErrNotFound
	}
	if err := authorize(actor, rbac.ResourceComment, rbac.ActionDelete, c.AuthorID); err != nil {
		return err
	}
	return s.repo.DeleteComment(ctx, id)
}

// OwnerOf returns the author of a question, answer or comment, or "" when
// the author's account is gone.
func (s *Service) OwnerOf(ctx context.Context, kind, id string) (string, error) {
	switch Kind(kind) {
	case KindQuestion:
		q, err := s.repo.FindQuestion(ctx, id)
		if err != nil {
			return "", err
		}
		return q.AuthorID, nil
	case KindAnswer:
		a, err := s.repo.FindAnswer(ctx, id)
		if err != nil {
			return "", err
		}
		return a.AuthorID, nil
	case KindComment:
		c, err := s.repo.FindComment(ctx, id)
		if err != nil {
			return "", err
		}
		return c.AuthorID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// question loads a question actor may see. Ids that are not uuids are
// reported as not found.
func (s *Service) question(ctx context.Context, actor *rbac.Actor, id string) (*Question, error) {
	if uuid.Validate(id) != nil {
		return nil, shared.ErrNotFound
	}
	q, err := s.repo.FindQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(actor, q.State) {
		return nil, shared.ErrNotFound
	}
	return q, nil
}

// answer loads an answer actor may see together with its question.
func (s *Service) answer(ctx context.Context, actor *rbac.Actor, id string) (*Answer, *Question, error) {
	if uuid.Validate(id) != nil {
		return nil, nil, shared.ErrNotFound
	}
	a, err := s.repo.FindAnswer(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !visible(actor, a.State) {
		return nil, nil, shared.ErrNotFound
	}
	q, err := s.question(ctx, actor, a.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	return a, q, nil
}
