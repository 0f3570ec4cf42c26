package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission(" Question:Create ")
	require.NoError(t, err)
	assert.Equal(t, QuestionCreate, p)
	assert.Equal(t, "question:create", p.String())

	for _, raw := range []string{"", "question", "question:", ":read", "comment:vote", "tag:read", "question:create:extra"} {
		_, err := ParsePermission(raw)
		assert.ErrorIs(t, err, ErrUnknownPermission, raw)
	}
}

func TestNewPermission(t *testing.T) {
	p, err := NewPermission(ResourceAnswer, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, AnswerAccept, p)

	_, err = NewPermission(ResourceQuestion, ActionAccept)
	assert.ErrorIs(t, err, ErrUnknownPermission)
}

func TestParsePermissionsSplitsRejected(t *testing.T) {
	perms, rejected := ParsePermissions([]string{"user:ban", "user:fly", "system:logs"})
	assert.Equal(t, []Permission{UserBan, SystemLogs}, perms)
	assert.Equal(t, []string{"user:fly"}, rejected)
}

func TestZeroPermissionInvalid(t *testing.T) {
	var p Permission
	assert.False(t, p.Valid())
	assert.Equal(t, "", p.String())
	_, err := p.MarshalText()
	assert.Error(t, err)
}

func TestPermissionJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal([]Permission{UserBan, CommentRead})
	require.NoError(t, err)
	assert.JSONEq(t, `["user:ban","comment:read"]`, string(raw))

	var out []Permission
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []Permission{UserBan, CommentRead}, out)

	assert.Error(t, json.Unmarshal([]byte(`["user:fly"]`), &out))
}

func TestAllPermissionsIsClosedSet(t *testing.T) {
	all := AllPermissions()
	assert.Len(t, all, 28)
	for _, p := range all {
		parsed, err := ParsePermission(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("moderator")
	assert.ErrorIs(t, err, ErrUnknownRole)

	assert.True(t, RoleAdmin.AtLeast(RoleUser))
	assert.False(t, RoleGuest.AtLeast(RoleUser))
	assert.False(t, Role("x").AtLeast(RoleGuest))
	assert.Equal(t, -1, Role("x").Level())
	assert.False(t, RoleGuest.Assignable())
	assert.True(t, RoleAdmin.Assignable())
}
