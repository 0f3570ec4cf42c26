package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeCall struct {
	op      string
	userID  string
	role    Role
	banned  bool
	reason  string
	perm    Permission
	actorID string
}

type stubStore struct {
	calls    []storeCall
	subjects map[string]*Subject
	err      error
}

func (s *stubStore) UpdateRole(_ context.Context, userID string, role Role, actorID string) error {
	s.calls = append(s.calls, storeCall{op: "role", userID: userID, role: role, actorID: actorID})
	return s.err
}

func (s *stubStore) SetBanned(_ context.Context, userID string, banned bool, reason, actorID string) error {
	s.calls = append(s.calls, storeCall{op: "ban", userID: userID, banned: banned, reason: reason, actorID: actorID})
	return s.err
}

func (s *stubStore) AddCustomPermission(_ context.Context, userID string, p Permission, actorID string) error {
	s.calls = append(s.calls, storeCall{op: "grant", userID: userID, perm: p, actorID: actorID})
	return s.err
}

func (s *stubStore) RemoveCustomPermission(_ context.Context, userID string, p Permission, actorID string) error {
	s.calls = append(s.calls, storeCall{op: "revoke", userID: userID, perm: p, actorID: actorID})
	return s.err
}

func (s *stubStore) AddRestrictedPermission(_ context.Context, userID string, p Permission, actorID string) error {
	s.calls = append(s.calls, storeCall{op: "restrict", userID: userID, perm: p, actorID: actorID})
	return s.err
}

func (s *stubStore) RemoveRestrictedPermission(_ context.Context, userID string, p Permission, actorID string) error {
	s.calls = append(s.calls, storeCall{op: "lift", userID: userID, perm: p, actorID: actorID})
	return s.err
}

func (s *stubStore) Subject(_ context.Context, userID string) (*Subject, error) {
	if s.err != nil {
		return nil, s.err
	}
	subject, ok := s.subjects[userID]
	if !ok {
		return nil, errors.New("not found")
	}
	return subject, nil
}

func TestActorIdentity(t *testing.T) {
	guest := GuestActor(nil)
	assert.True(t, guest.IsGuest())
	assert.False(t, guest.IsAuthenticated())
	assert.Equal(t, "", guest.ID())

	user := NewActor(nil, nil, subject("u1", RoleUser))
	assert.False(t, user.IsGuest())
	assert.True(t, user.IsAuthenticated())
	assert.Equal(t, "u1", user.ID())

	banned := subject("u2", RoleUser)
	banned.IsBanned = true
	bannedActor := NewActor(nil, nil, banned)
	assert.False(t, bannedActor.IsGuest())
	assert.False(t, bannedActor.IsAuthenticated())

	var nilActor *Actor
	assert.True(t, nilActor.IsGuest())
	assert.False(t, nilActor.IsAdmin())
	assert.False(t, nilActor.IsAuthenticated())
}

func TestUpdateUserRoleRequiresAdmin(t *testing.T) {
	store := &stubStore{}
	user := NewActor(nil, store, subject("u1", RoleUser))

	err := user.UpdateUserRole(context.Background(), "u2", RoleAdmin)
	require.ErrorIs(t, err, ErrInsufficientPrivilege)
	assert.Empty(t, store.calls)

	admin := NewActor(nil, store, subject("a1", RoleAdmin))
	require.NoError(t, admin.UpdateUserRole(context.Background(), "u2", RoleAdmin))
	require.Len(t, store.calls, 1)
	assert.Equal(t, storeCall{op: "role", userID: "u2", role: RoleAdmin, actorID: "a1"}, store.calls[0])
}

func TestUpdateUserRoleRejectsUnassignableRoles(t *testing.T) {
	store := &stubStore{}
	admin := NewActor(nil, store, subject("a1", RoleAdmin))

	require.ErrorIs(t, admin.UpdateUserRole(context.Background(), "u2", RoleGuest), ErrRoleNotAssignable)
	require.ErrorIs(t, admin.UpdateUserRole(context.Background(), "u2", Role("root")), ErrUnknownRole)
	assert.Empty(t, store.calls)
}

func TestBanUser(t *testing.T) {
	store := &stubStore{}
	user := NewActor(nil, store, subject("u1", RoleUser))
	require.ErrorIs(t, user.BanUser(context.Background(), "u2", "spam"), ErrInsufficientPrivilege)
	assert.Empty(t, store.calls)

	admin := NewActor(nil, store, subject("a1", RoleAdmin))
	require.NoError(t, admin.BanUser(context.Background(), "u2", "  "))
	require.NoError(t, admin.BanUser(context.Background(), "u3", "spam"))
	require.NoError(t, admin.UnbanUser(context.Background(), "u3"))

	require.Len(t, store.calls, 3)
	assert.Equal(t, DefaultBanReason, store.calls[0].reason)
	assert.True(t, store.calls[0].banned)
	assert.Equal(t, "spam", store.calls[1].reason)
	assert.False(t, store.calls[2].banned)
}

func TestBanUserByContentModerator(t *testing.T) {
	store := &stubStore{}
	mod := subject("m1", RoleUser)
	mod.CustomPermissions = []Permission{QuestionModerate}
	actor := NewActor(nil, store, mod)

	require.NoError(t, actor.BanUser(context.Background(), "u2", ""))
	require.ErrorIs(t, actor.UpdateUserRole(context.Background(), "u2", RoleAdmin), ErrInsufficientPrivilege)
}

func TestBannedAdminCannotMutate(t *testing.T) {
	store := &stubStore{}
	s := subject("a1", RoleAdmin)
	s.IsBanned = true
	actor := NewActor(nil, store, s)

	require.ErrorIs(t, actor.UpdateUserRole(context.Background(), "u2", RoleUser), ErrInsufficientPrivilege)
	require.ErrorIs(t, actor.BanUser(context.Background(), "u2", "x"), ErrInsufficientPrivilege)
	assert.Empty(t, store.calls)
}

func TestPermissionMutations(t *testing.T) {
	store := &stubStore{}
	admin := NewActor(nil, store, subject("a1", RoleAdmin))
	ctx := context.Background()

	require.NoError(t, admin.GrantPermission(ctx, "u2", SystemLogs))
	require.NoError(t, admin.RevokeGrant(ctx, "u2", SystemLogs))
	require.NoError(t, admin.RestrictPermission(ctx, "u2", QuestionCreate))
	require.NoError(t, admin.LiftRestriction(ctx, "u2", QuestionCreate))
	require.ErrorIs(t, admin.GrantPermission(ctx, "u2", Permission{}), ErrUnknownPermission)

	ops := make([]string, 0, len(store.calls))
	for _, c := range store.calls {
		ops = append(ops, c.op)
	}
	assert.Equal(t, []string{"grant", "revoke", "restrict", "lift"}, ops)

	user := NewActor(nil, store, subject("u1", RoleUser))
	require.ErrorIs(t, user.GrantPermission(ctx, "u1", SystemLogs), ErrInsufficientPrivilege)
	assert.Len(t, store.calls, 4)
}

func TestMutationWithoutStore(t *testing.T) {
	admin := NewActor(nil, nil, subject("a1", RoleAdmin))
	err := admin.UpdateUserRole(context.Background(), "u2", RoleUser)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientPrivilege)
}

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	admin := NewActor(nil, &stubStore{err: boom}, subject("a1", RoleAdmin))
	require.ErrorIs(t, admin.BanUser(context.Background(), "u2", "x"), boom)
}

func TestRefresh(t *testing.T) {
	promoted := subject("u1", RoleAdmin)
	store := &stubStore{subjects: map[string]*Subject{"u1": promoted}}
	actor := NewActor(nil, store, subject("u1", RoleUser))
	require.False(t, actor.IsAdmin())

	refreshed, err := actor.Refresh(context.Background(), store)
	require.NoError(t, err)
	assert.True(t, refreshed.IsAdmin())
	assert.False(t, actor.IsAdmin(), "original actor is unchanged")

	guest := GuestActor(nil)
	same, err := guest.Refresh(context.Background(), store)
	require.NoError(t, err)
	assert.Same(t, guest, same)

	_, err = NewActor(nil, store, subject("missing", RoleUser)).Refresh(context.Background(), store)
	require.Error(t, err)
}

func TestBindNilActor(t *testing.T) {
	var zero *Actor
	bound := zero.Bind(subject("u1", RoleAdmin))
	require.NotNil(t, bound)
	assert.Equal(t, "u1", bound.ID())
	assert.True(t, bound.IsAdmin())
	assert.Same(t, DefaultCatalog(), bound.Catalog())
	require.Error(t, bound.BanUser(context.Background(), "u2", "x"), "no store to write to")

	empty := (&Actor{}).Bind(subject("u2", RoleUser))
	assert.Same(t, DefaultCatalog(), empty.Catalog())
	assert.True(t, empty.HasPermission(QuestionCreate))
}

func TestActorFromContextDefaultsToGuest(t *testing.T) {
	actor := ActorFromContext(context.Background())
	require.NotNil(t, actor)
	assert.True(t, actor.IsGuest())
	assert.True(t, actor.HasPermission(QuestionRead))

	bound := NewActor(nil, nil, subject("u1", RoleUser))
	assert.Same(t, bound, ActorFromContext(ContextWithActor(context.Background(), bound)))
}
