package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subject(id string, role Role) *Subject {
	return &Subject{ID: id, Role: role, IsActive: true}
}

func TestHasPermissionGuest(t *testing.T) {
	guest := Guest(nil)
	assert.True(t, guest.HasPermission(QuestionRead), "scenario A")
	assert.False(t, guest.HasPermission(QuestionCreate), "scenario B")
	assert.False(t, guest.HasPermission(Permission{}))
}

func TestHasPermissionRestrictionOverridesRole(t *testing.T) {
	s := subject("u1", RoleUser)
	s.RestrictedPermissions = []Permission{QuestionCreate}
	a := New(nil, s)

	assert.False(t, a.HasPermission(QuestionCreate), "scenario F")
	assert.True(t, a.HasPermission(AnswerCreate))
}

func TestHasPermissionCustomGrant(t *testing.T) {
	s := subject("u1", RoleUser)
	s.CustomPermissions = []Permission{CommentModerate}
	a := New(nil, s)

	assert.True(t, a.HasPermission(CommentModerate))
	assert.True(t, a.CanModerate())
}

func TestRestrictionBeatsCustomGrant(t *testing.T) {
	s := subject("u1", RoleUser)
	s.CustomPermissions = []Permission{SystemLogs}
	s.RestrictedPermissions = []Permission{SystemLogs}
	assert.False(t, New(nil, s).HasPermission(SystemLogs))
}

func TestDisqualifiedSubjectsCollapseToGuest(t *testing.T) {
	banned := subject("a1", RoleAdmin)
	banned.IsBanned = true
	banned.CustomPermissions = []Permission{SystemSettings}

	inactive := subject("a2", RoleAdmin)
	inactive.IsActive = false

	guest := Guest(nil)
	for _, s := range []*Subject{banned, inactive} {
		a := New(nil, s)
		for _, p := range AllPermissions() {
			assert.Equal(t, guest.HasPermission(p), a.HasPermission(p), "permission %s", p)
		}
		assert.False(t, a.IsAdmin())
		assert.False(t, a.CanModerate())
	}
}

func TestUnknownRoleResolvesToNothing(t *testing.T) {
	a := New(nil, subject("u1", Role("superuser")))
	assert.Empty(t, a.Permissions())
	assert.False(t, a.HasPermission(QuestionRead))
	assert.Equal(t, "Unknown", a.RoleDisplayName())
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	a := New(nil, subject("u1", RoleUser))

	assert.True(t, a.HasAnyPermission(SystemLogs, QuestionCreate))
	assert.False(t, a.HasAnyPermission(SystemLogs, SystemSettings))
	assert.False(t, a.HasAnyPermission())

	assert.True(t, a.HasAllPermissions(QuestionCreate, AnswerCreate))
	assert.False(t, a.HasAllPermissions(QuestionCreate, SystemLogs))
	assert.True(t, a.HasAllPermissions())
}

func TestIsOwner(t *testing.T) {
	a := New(nil, subject("u1", RoleUser))
	assert.True(t, a.IsOwner("u1"))
	assert.False(t, a.IsOwner("u2"))
	assert.False(t, a.IsOwner(""))

	assert.False(t, Guest(nil).IsOwner("u1"))
	assert.False(t, Guest(nil).IsOwner(""))
}

func TestCanModerateIgnoresOwner(t *testing.T) {
	user := New(nil, subject("u1", RoleUser))
	admin := New(nil, subject("a1", RoleAdmin))

	assert.False(t, user.CanModerate())
	assert.False(t, user.CanModerate("u1"), "owning content does not grant moderation")
	assert.True(t, admin.CanModerate())
	assert.True(t, admin.CanModerate("a1"))
}

func TestCanModerateViaSystemPermissionOnly(t *testing.T) {
	s := subject("u1", RoleUser)
	s.CustomPermissions = []Permission{SystemModerate}
	assert.True(t, New(nil, s).CanModerate())
}

func TestCanVote(t *testing.T) {
	user := New(nil, subject("u1", RoleUser))
	admin := New(nil, subject("a1", RoleAdmin))

	assert.True(t, user.CanVote())
	assert.True(t, user.CanVote("u2"))
	assert.False(t, user.CanVote("u1"))
	assert.False(t, admin.CanVote("a1"), "self-voting is forbidden regardless of role")
	assert.False(t, Guest(nil).CanVote("u1"))

	noVotes := subject("u3", RoleUser)
	noVotes.RestrictedPermissions = []Permission{QuestionVote}
	assert.True(t, New(nil, noVotes).CanVote("u2"), "answer:vote still allows voting")
	noVotes.RestrictedPermissions = append(noVotes.RestrictedPermissions, AnswerVote)
	assert.False(t, New(nil, noVotes).CanVote("u2"))
}

func TestCanEditAndDelete(t *testing.T) {
	owner := New(nil, subject("u1", RoleUser))
	admin := New(nil, subject("a1", RoleAdmin))

	assert.True(t, owner.CanEdit("u1"), "scenario C")
	assert.False(t, owner.CanEdit("u2"), "scenario D")
	assert.True(t, admin.CanEdit("u3"), "scenario E")

	assert.True(t, owner.CanDelete("u1"))
	assert.False(t, owner.CanDelete("u2"))
	assert.True(t, admin.CanDelete("u2"))
	assert.False(t, Guest(nil).CanEdit("u1"))
}

func TestCanEditMatchesOwnershipOrModeration(t *testing.T) {
	actors := []*Authorizer{
		Guest(nil),
		New(nil, subject("u1", RoleUser)),
		New(nil, subject("a1", RoleAdmin)),
	}
	for _, a := range actors {
		for _, owner := range []string{"", "u1", "a1", "x"} {
			assert.Equal(t, a.IsOwner(owner) || a.CanModerate(), a.CanEdit(owner))
		}
	}
}

func TestCanPerformAction(t *testing.T) {
	user := New(nil, subject("u1", RoleUser))
	admin := New(nil, subject("a1", RoleAdmin))

	tests := []struct {
		name  string
		actor *Authorizer
		req   ResourceAction
		want  bool
	}{
		{"guest read", Guest(nil), ResourceAction{Resource: ResourceQuestion, Action: ActionRead}, true},
		{"guest create", Guest(nil), ResourceAction{Resource: ResourceQuestion, Action: ActionCreate}, false},
		{"user updates own", user, ResourceAction{Resource: ResourceQuestion, Action: ActionUpdate, OwnerID: "u1"}, true},
		{"user updates other", user, ResourceAction{Resource: ResourceQuestion, Action: ActionUpdate, OwnerID: "u2"}, false},
		{"user update without owner", user, ResourceAction{Resource: ResourceQuestion, Action: ActionUpdate}, true},
		{"user accepts on own question", user, ResourceAction{Resource: ResourceAnswer, Action: ActionAccept, OwnerID: "u1"}, true},
		{"user accepts on other question", user, ResourceAction{Resource: ResourceAnswer, Action: ActionAccept, OwnerID: "u2"}, false},
		{"user updates own profile", user, ResourceAction{Resource: ResourceUser, Action: ActionUpdate, OwnerID: "u1"}, true},
		{"user updates other profile", user, ResourceAction{Resource: ResourceUser, Action: ActionUpdate, OwnerID: "u2"}, false},
		{"user votes on other", user, ResourceAction{Resource: ResourceAnswer, Action: ActionVote, OwnerID: "u2"}, true},
		{"admin deletes other comment", admin, ResourceAction{Resource: ResourceComment, Action: ActionDelete, OwnerID: "u2"}, true},
		{"user bans", user, ResourceAction{Resource: ResourceUser, Action: ActionBan, OwnerID: "u2"}, false},
		{"invalid pair", admin, ResourceAction{Resource: ResourceComment, Action: ActionVote}, false},
		{"unknown resource", admin, ResourceAction{Resource: Resource("tag"), Action: ActionRead}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.CanPerformAction(tt.req))
		})
	}
}

func TestIsAdminAndHasRole(t *testing.T) {
	admin := New(nil, subject("a1", RoleAdmin))
	user := New(nil, subject("u1", RoleUser))

	assert.True(t, admin.IsAdmin())
	assert.False(t, user.IsAdmin())
	assert.False(t, Guest(nil).IsAdmin())

	assert.True(t, admin.HasRole(RoleUser))
	assert.True(t, user.HasRole(RoleGuest))
	assert.False(t, user.HasRole(RoleAdmin))
	assert.True(t, Guest(nil).HasRole(RoleGuest))
	assert.False(t, Guest(nil).HasRole(RoleUser))
}

func TestMutationGates(t *testing.T) {
	admin := New(nil, subject("a1", RoleAdmin))
	user := New(nil, subject("u1", RoleUser))

	require.NoError(t, admin.AuthorizeRoleUpdate())
	require.NoError(t, admin.AuthorizeBan())
	require.ErrorIs(t, user.AuthorizeRoleUpdate(), ErrInsufficientPrivilege)
	require.ErrorIs(t, user.AuthorizeBan(), ErrInsufficientPrivilege)

	// A content moderator can ban but cannot change roles.
	mod := subject("m1", RoleUser)
	mod.CustomPermissions = []Permission{AnswerModerate}
	moderator := New(nil, mod)
	require.NoError(t, moderator.AuthorizeBan())
	require.ErrorIs(t, moderator.AuthorizeRoleUpdate(), ErrInsufficientPrivilege)
}

func TestAuthorizerIsolatedFromSubjectMutation(t *testing.T) {
	s := subject("u1", RoleUser)
	a := New(nil, s)
	s.Role = RoleAdmin
	s.CustomPermissions = append(s.CustomPermissions, SystemLogs)

	assert.False(t, a.IsAdmin())
	assert.False(t, a.HasPermission(SystemLogs))
	assert.Equal(t, RoleUser, a.Subject().Role)
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "Guest", Guest(nil).RoleDisplayName())
	assert.Equal(t, "User", New(nil, subject("u1", RoleUser)).RoleDisplayName())
	assert.Equal(t, "Administrator", New(nil, subject("a1", RoleAdmin)).RoleDisplayName())
}

func TestPermissionsSorted(t *testing.T) {
	perms := Guest(nil).Permissions()
	assert.Equal(t, []string{"answer:read", "comment:read", "question:read"}, PermissionStrings(perms))
}
