package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
)

// Notifier queues owner notifications for asynchronous delivery.
type Notifier interface {
	EnqueueModerationNotice(ctx context.Context, n Notification) error
}

// Owners looks up the author of a question, answer or comment. Unknown
// content yields shared.ErrNotFound; content whose author is gone yields "".
type Owners interface {
	OwnerOf(ctx context.Context, kind, id string) (string, error)
}

// Service applies moderation actions on behalf of an Actor.
type Service struct {
	repo     Repository
	owners   Owners
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service instance. owners and notifier may be nil; without
// owners content targets have no known author.
func NewService(repo Repository, owners Owners, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, owners: owners, notifier: notifier, logger: logger}
}

// Resolve checks target's id and fills its owner from the content store.
// Any caller supplied OwnerID is discarded.
func (s *Service) Resolve(ctx context.Context, target Target) (Target, error) {
	target.OwnerID = ""
	if !target.Type.Valid() {
		return target, fmt.Errorf("%w: target %s", ErrUnsupportedAction, target.Type)
	}
	if err := uuid.Validate(target.ID); err != nil {
		return target, fmt.Errorf("%w: %q", ErrInvalidTarget, target.ID)
	}
	if target.Type == TargetUser || s.owners == nil {
		return target, nil
	}
	owner, err := s.owners.OwnerOf(ctx, string(target.Type), target.ID)
	if err != nil {
		return target, fmt.Errorf("moderation: %s owner: %w", target.Type, err)
	}
	target.OwnerID = owner
	return target, nil
}

// Menu lists the actions actor may offer for target, in display order.
// Reasons are not considered; they are checked when the action is applied.
func Menu(actor *rbac.Actor, target Target) []Action {
	if !actor.CanModerate(target.owner()) {
		return nil
	}
	var out []Action
	for _, a := range actionOrder {
		if !a.AppliesTo(target.Type) {
			continue
		}
		if a.AdminOnly() && !actor.IsAdmin() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Apply checks req against actor's rights and the action rules, performs it
// and records a Log. A ban or unban commits together with its log.
func (s *Service) Apply(ctx context.Context, actor *rbac.Actor, req Request) (*Log, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if !req.Action.Valid() || !req.Action.AppliesTo(req.Target.Type) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, req.Action, req.Target.Type)
	}
	target, err := s.Resolve(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	owner := target.owner()
	if !actor.CanModerate(owner) {
		return nil, fmt.Errorf("moderation: %s: %w", req.Action, rbac.ErrInsufficientPrivilege)
	}
	if req.Action.AdminOnly() && !actor.IsAdmin() {
		return nil, fmt.Errorf("moderation: %s: %w", req.Action, rbac.ErrInsufficientPrivilege)
	}
	if req.Action.RequiresReason() && req.Reason == "" {
		return nil, ErrReasonRequired
	}

	var effect func(context.Context) error
	switch req.Action {
	case ActionBanUser:
		if owner == "" {
			return nil, ErrOwnerRequired
		}
		effect = func(ctx context.Context) error { return actor.BanUser(ctx, owner, req.Reason) }
	case ActionUnbanUser:
		if owner == "" {
			return nil, ErrOwnerRequired
		}
		effect = func(ctx context.Context) error { return actor.UnbanUser(ctx, owner) }
	}

	log := &Log{
		ID:          uuid.NewString(),
		ModeratorID: actor.ID(),
		Action:      req.Action,
		TargetType:  target.Type,
		TargetID:    target.ID,
		OwnerID:     owner,
		Reason:      req.Reason,
	}
	if err := s.repo.Save(ctx, log, effect); err != nil {
		return nil, err
	}
	s.logger.Info("moderation applied",
		slog.String("action", string(log.Action)),
		slog.String("target_type", string(log.TargetType)),
		slog.String("target_id", log.TargetID),
		slog.String("moderator_id", log.ModeratorID))

	if owner != "" && owner != actor.ID() && s.notifier != nil {
		n := Notification{UserID: owner, LogID: log.ID, Action: log.Action, TargetType: log.TargetType, TargetID: log.TargetID, Reason: log.Reason}
		if err := s.notifier.EnqueueModerationNotice(ctx, n); err != nil {
			s.logger.Warn("enqueue moderation notice", slog.String("log_id", log.ID), slog.Any("error", err))
		}
	}
	return log, nil
}

// LogPage is one page of moderation logs.
type LogPage struct {
	Logs []Log
	Page shared.Pagination
}

// ListLogs returns one page of logs, newest first.
func (s *Service) ListLogs(ctx context.Context, page, perPage int) (LogPage, error) {
	p := shared.NewPagination(page, perPage, 0)
	logs, total, err := s.repo.ListLogs(ctx, p.PerPage, p.Offset())
	if err != nil {
		return LogPage{}, err
	}
	return LogPage{Logs: logs, Page: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// InboxPage is one page of a user's notifications.
type InboxPage struct {
	Items []InboxItem
	Page  shared.Pagination
}

// Inbox lists the notifications addressed to actor.
func (s *Service) Inbox(ctx context.Context, actor *rbac.Actor, page, perPage int) (InboxPage, error) {
	if !actor.IsAuthenticated() {
		return InboxPage{}, rbac.ErrInsufficientPrivilege
	}
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.ListNotifications(ctx, actor.ID(), p.PerPage, p.Offset())
	if err != nil {
		return InboxPage{}, err
	}
	return InboxPage{Items: items, Page: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// MarkRead marks one of actor's notifications as read. Notifications of
// other users are reported as not found.
func (s *Service) MarkRead(ctx context.Context, actor *rbac.Actor, id int64) error {
	if !actor.IsAuthenticated() {
		return rbac.ErrInsufficientPrivilege
	}
	return s.repo.MarkNotificationRead(ctx, actor.ID(), id)
}

// Deliver persists a queued notification.
func (s *Service) Deliver(ctx context.Context, n Notification) error {
	if n.UserID == "" || n.LogID == "" {
		return fmt.Errorf("moderation: notification missing user or log id")
	}
	return s.repo.SaveNotification(ctx, n)
}
