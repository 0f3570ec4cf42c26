package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Resource names the kind of object a permission applies to.
type Resource string

// Action names what may be done to a resource.
type Action string

const (
	ResourceQuestion Resource = "question"
	ResourceAnswer   Resource = "answer"
	ResourceComment  Resource = "comment"
	ResourceUser     Resource = "user"
	ResourceSystem   Resource = "system"
)

const (
	ActionCreate    Action = "create"
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionVote      Action = "vote"
	ActionAccept    Action = "accept"
	ActionModerate  Action = "moderate"
	ActionBan       Action = "ban"
	ActionPromote   Action = "promote"
	ActionAnalytics Action = "analytics"
	ActionSettings  Action = "settings"
	ActionLogs      Action = "logs"
)

// Permission is a resource:action capability. Values outside the closed set
// cannot be built through NewPermission or ParsePermission; the zero value is
// invalid and never granted.
type Permission struct {
	resource Resource
	action   Action
}

// Question permissions.
var (
	QuestionCreate   = Permission{ResourceQuestion, ActionCreate}
	QuestionRead     = Permission{ResourceQuestion, ActionRead}
	QuestionUpdate   = Permission{ResourceQuestion, ActionUpdate}
	QuestionDelete   = Permission{ResourceQuestion, ActionDelete}
	QuestionVote     = Permission{ResourceQuestion, ActionVote}
	QuestionModerate = Permission{ResourceQuestion, ActionModerate}
)

// Answer permissions.
var (
	AnswerCreate   = Permission{ResourceAnswer, ActionCreate}
	AnswerRead     = Permission{ResourceAnswer, ActionRead}
	AnswerUpdate   = Permission{ResourceAnswer, ActionUpdate}
	AnswerDelete   = Permission{ResourceAnswer, ActionDelete}
	AnswerVote     = Permission{ResourceAnswer, ActionVote}
	AnswerAccept   = Permission{ResourceAnswer, ActionAccept}
	AnswerModerate = Permission{ResourceAnswer, ActionModerate}
)

// Comment permissions.
var (
	CommentCreate   = Permission{ResourceComment, ActionCreate}
	CommentRead     = Permission{ResourceComment, ActionRead}
	CommentUpdate   = Permission{ResourceComment, ActionUpdate}
	CommentDelete   = Permission{ResourceComment, ActionDelete}
	CommentModerate = Permission{ResourceComment, ActionModerate}
)

// User management permissions.
var (
	UserCreate  = Permission{ResourceUser, ActionCreate}
	UserRead    = Permission{ResourceUser, ActionRead}
	UserUpdate  = Permission{ResourceUser, ActionUpdate}
	UserDelete  = Permission{ResourceUser, ActionDelete}
	UserBan     = Permission{ResourceUser, ActionBan}
	UserPromote = Permission{ResourceUser, ActionPromote}
)

// System permissions.
var (
	SystemModerate  = Permission{ResourceSystem, ActionModerate}
	SystemAnalytics = Permission{ResourceSystem, ActionAnalytics}
	SystemSettings  = Permission{ResourceSystem, ActionSettings}
	SystemLogs      = Permission{ResourceSystem, ActionLogs}
)

var allPermissions = []Permission{
	QuestionCreate, QuestionRead, QuestionUpdate, QuestionDelete, QuestionVote, QuestionModerate,
	AnswerCreate, AnswerRead, AnswerUpdate, AnswerDelete, AnswerVote, AnswerAccept, AnswerModerate,
	CommentCreate, CommentRead, CommentUpdate, CommentDelete, CommentModerate,
	UserCreate, UserRead, UserUpdate, UserDelete, UserBan, UserPromote,
	SystemModerate, SystemAnalytics, SystemSettings, SystemLogs,
}

var knownPermissions = func() map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		set[p] = struct{}{}
	}
	return set
}()

// AllPermissions returns every permission in catalog order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// NewPermission validates a resource/action pair against the closed set.
func NewPermission(resource Resource, action Action) (Permission, error) {
	p := Permission{resource: resource, action: action}
	if _, ok := knownPermissions[p]; !ok {
		return Permission{}, fmt.Errorf("%w: %s:%s", ErrUnknownPermission, resource, action)
	}
	return p, nil
}

// ParsePermission parses the resource:action form.
func ParsePermission(raw string) (Permission, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	resource, action, ok := strings.Cut(raw, ":")
	if !ok {
		return Permission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
	}
	return NewPermission(Resource(resource), Action(action))
}

// MustParsePermission is ParsePermission for static inputs.
func MustParsePermission(raw string) Permission {
	p, err := ParsePermission(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePermissions parses a list, dropping tokens outside the closed set.
// The second return value lists the rejected tokens.
func ParsePermissions(raw []string) ([]Permission, []string) {
	perms := make([]Permission, 0, len(raw))
	var rejected []string
	for _, r := range raw {
		p, err := ParsePermission(r)
		if err != nil {
			rejected = append(rejected, r)
			continue
		}
		perms = append(perms, p)
	}
	return perms, rejected
}

// Resource returns the resource half of the permission.
func (p Permission) Resource() Resource { return p.resource }

// Action returns the action half of the permission.
func (p Permission) Action() Action { return p.action }

// Valid reports whether p belongs to the closed set.
func (p Permission) Valid() bool {
	_, ok := knownPermissions[p]
	return ok
}

func (p Permission) String() string {
	if p.resource == "" && p.action == "" {
		return ""
	}
	return string(p.resource) + ":" + string(p.action)
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, p.String())
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PermissionStrings renders permissions in their textual form.
func PermissionStrings(perms []Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.String())
	}
	return out
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set, ignoring invalid permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	set.Add(perms...)
	return set
}

// Add inserts valid permissions.
func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		if p.Valid() {
			s[p] = struct{}{}
		}
	}
}

// Remove deletes permissions from the set.
func (s PermissionSet) Remove(perms ...Permission) {
	for _, p := range perms {
		delete(s, p)
	}
}

// Has reports membership.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Contains reports whether every member of other is in s.
func (s PermissionSet) Contains(other PermissionSet) bool {
	for p := range other {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Equal reports set equality.
func (s PermissionSet) Equal(other PermissionSet) bool {
	return len(s) == len(other) && s.Contains(other)
}

// Sorted returns the members ordered by their textual form.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
