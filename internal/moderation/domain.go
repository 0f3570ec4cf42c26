package moderation

import (
	"fmt"
	"time"

	"github.com/stackit-qa/stackit/internal/platform/httpx"
)

// Action is a moderation operation.
type Action string

const (
	ActionFlag      Action = "flag"
	ActionUnflag    Action = "unflag"
	ActionHide      Action = "hide"
	ActionUnhide    Action = "unhide"
	ActionLock      Action = "lock"
	ActionUnlock    Action = "unlock"
	ActionDelete    Action = "delete"
	ActionBanUser   Action = "ban_user"
	ActionUnbanUser Action = "unban_user"
	ActionFeature   Action = "feature"
	ActionUnfeature Action = "unfeature"
)

// TargetType names the kind of thing being moderated.
type TargetType string

const (
	TargetQuestion TargetType = "question"
	TargetAnswer   TargetType = "answer"
	TargetComment  TargetType = "comment"
	TargetUser     TargetType = "user"
)

var (
	// ErrUnsupportedAction is returned for unknown actions or actions that do
	// not apply to the target type.
	ErrUnsupportedAction = fmt.Errorf("moderation: unsupported action: %w", httpx.ErrValidation)
	// ErrReasonRequired is returned when an action needs a reason and none was given.
	ErrReasonRequired = fmt.Errorf("moderation: reason required: %w", httpx.ErrValidation)
	// ErrOwnerRequired is returned when a ban targets content with no known owner.
	ErrOwnerRequired = fmt.Errorf("moderation: target owner required: %w", httpx.ErrValidation)
	// ErrInvalidTarget is returned when a target id is not a uuid.
	ErrInvalidTarget = fmt.Errorf("moderation: invalid target id: %w", httpx.ErrValidation)
)

type actionRule struct {
	reason       bool
	questionOnly bool
	adminOnly    bool
}

// actionOrder is the menu order.
var actionOrder = []Action{
	ActionFlag, ActionUnflag,
	ActionHide, ActionUnhide,
	ActionLock, ActionUnlock,
	ActionFeature, ActionUnfeature,
	ActionDelete,
	ActionBanUser, ActionUnbanUser,
}

var rules = map[Action]actionRule{
	ActionFlag:      {},
	ActionUnflag:    {},
	ActionHide:      {reason: true},
	ActionUnhide:    {reason: true},
	ActionLock:      {reason: true, questionOnly: true},
	ActionUnlock:    {reason: true, questionOnly: true},
	ActionDelete:    {reason: true},
	ActionBanUser:   {reason: true, adminOnly: true},
	ActionUnbanUser: {adminOnly: true},
	ActionFeature:   {questionOnly: true},
	ActionUnfeature: {questionOnly: true},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := rules[a]
	return ok
}

// RequiresReason reports whether a must carry a reason.
func (a Action) RequiresReason() bool {
	return rules[a].reason
}

// AdminOnly reports whether only administrators may perform a.
func (a Action) AdminOnly() bool {
	return rules[a].adminOnly
}

// AppliesTo reports whether a can target t. Users can only be banned or unbanned.
func (a Action) AppliesTo(t TargetType) bool {
	rule, ok := rules[a]
	if !ok || !t.Valid() {
		return false
	}
	if t == TargetUser {
		return a == ActionBanUser || a == ActionUnbanUser
	}
	return !rule.questionOnly || t == TargetQuestion
}

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetQuestion, TargetAnswer, TargetComment, TargetUser:
		return true
	}
	return false
}

// Target identifies moderated content and its author. OwnerID is filled by
// Service.Resolve.
type Target struct {
	Type    TargetType `json:"type"`
	ID      string     `json:"id"`
	OwnerID string     `json:"owner_id,omitempty"`
}

// owner is the user affected by the action. A user target owns itself.
func (t Target) owner() string {
	if t.Type == TargetUser {
		return t.ID
	}
	return t.OwnerID
}

// Request asks for one moderation action.
type Request struct {
	Action Action
	Target Target
	Reason string
}

// Log is the permanent record of an applied action.
type Log struct {
	ID          string     `json:"id"`
	ModeratorID string     `json:"moderator_id"`
	Action      Action     `json:"action"`
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Notification tells a content owner that a moderator acted on their content.
type Notification struct {
	UserID     string     `json:"user_id"`
	LogID      string     `json:"log_id"`
	Action     Action     `json:"action"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
	Reason     string     `json:"reason,omitempty"`
}

// InboxItem is a stored notification as its recipient sees it.
type InboxItem struct {
	ID        int64      `json:"id"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	LogID     string     `json:"log_id"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Message renders the notification text shown to the owner.
func (n Notification) Message() string {
	var verb string
	switch n.Action {
	case ActionFlag:
		verb = "flagged"
	case ActionUnflag:
		verb = "unflagged"
	case ActionHide:
		verb = "hidden"
	case ActionUnhide:
		verb = "restored"
	case ActionLock:
		verb = "locked"
	case ActionUnlock:
		verb = "unlocked"
	case ActionDelete:
		verb = "deleted"
	case ActionFeature:
		verb = "featured"
	case ActionUnfeature:
		verb = "unfeatured"
	case ActionBanUser:
		return withReason("Your account was banned", n.Reason)
	case ActionUnbanUser:
		return "Your account ban was lifted"
	default:
		verb = "moderated"
	}
	return withReason(fmt.Sprintf("Your %s was %s by a moderator", n.TargetType, verb), n.Reason)
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + ": " + reason
}
