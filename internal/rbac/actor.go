package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultBanReason is recorded when a moderator gives no reason.
const DefaultBanReason = "No reason provided"

// UserStore persists privilege changes made through an Actor.
type UserStore interface {
	UpdateRole(ctx context.Context, userID string, role Role, actorID string) error
	SetBanned(ctx context.Context, userID string, banned bool, reason, actorID string) error
	AddCustomPermission(ctx context.Context, userID string, p Permission, actorID string) error
	RemoveCustomPermission(ctx context.Context, userID string, p Permission, actorID string) error
	AddRestrictedPermission(ctx context.Context, userID string, p Permission, actorID string) error
	RemoveRestrictedPermission(ctx context.Context, userID string, p Permission, actorID string) error
}

// SubjectLoader resolves the authorization view of a user by id.
type SubjectLoader interface {
	Subject(ctx context.Context, userID string) (*Subject, error)
}

// Actor binds an Authorizer to the user acting in the current request.
// Binding a different user yields a new Actor; an Actor never changes.
type Actor struct {
	*Authorizer
	store UserStore
}

// NewActor builds an Actor for subject. A nil subject is an anonymous guest.
func NewActor(catalog *Catalog, store UserStore, subject *Subject) *Actor {
	return &Actor{Authorizer: New(catalog, subject), store: store}
}

// GuestActor returns an anonymous Actor without a store.
func GuestActor(catalog *Catalog) *Actor {
	return NewActor(catalog, nil, nil)
}

// Bind returns a new Actor for subject sharing the catalog and store. A nil
// Actor binds against DefaultCatalog without a store.
func (a *Actor) Bind(subject *Subject) *Actor {
	if a == nil {
		return NewActor(nil, nil, subject)
	}
	return NewActor(a.Catalog(), a.store, subject)
}

// Refresh reloads the bound subject and returns a new Actor. Anonymous actors
// are returned unchanged.
func (a *Actor) Refresh(ctx context.Context, loader SubjectLoader) (*Actor, error) {
	if a.IsGuest() {
		return a, nil
	}
	subject, err := loader.Subject(ctx, a.subject.ID)
	if err != nil {
		return nil, fmt.Errorf("rbac: refresh subject: %w", err)
	}
	return a.Bind(subject), nil
}

// IsAuthenticated reports a bound user that is active and not banned.
func (a *Actor) IsAuthenticated() bool {
	return a != nil && a.Authorizer != nil && !a.subject.Disqualified()
}

// IsGuest reports whether no user is bound.
func (a *Actor) IsGuest() bool {
	return a == nil || a.Authorizer == nil || a.subject == nil
}

// IsAdmin reports an authenticated administrator.
func (a *Actor) IsAdmin() bool {
	if a == nil {
		return false
	}
	return a.Authorizer.IsAdmin()
}

// ID returns the bound user's id, or "" for guests.
func (a *Actor) ID() string {
	if a.IsGuest() {
		return ""
	}
	return a.subject.ID
}

// UpdateUserRole changes userID's role. Only administrators may do so.
func (a *Actor) UpdateUserRole(ctx context.Context, userID string, role Role) error {
	if err := a.gate(gateAdmin, "update user role"); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("rbac: update user role: %w: %q", ErrUnknownRole, role)
	}
	if !role.Assignable() {
		return fmt.Errorf("rbac: update user role: %w: %s", ErrRoleNotAssignable, role)
	}
	if err := a.requireStore(); err != nil {
		return err
	}
	return a.store.UpdateRole(ctx, userID, role, a.ID())
}

// BanUser bans userID. Only actors that can moderate may ban.
func (a *Actor) BanUser(ctx context.Context, userID, reason string) error {
	if err := a.gate(gateModerator, "ban user"); err != nil {
		return err
	}
	if err := a.requireStore(); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBanReason
	}
	return a.store.SetBanned(ctx, userID, true, reason, a.ID())
}

// UnbanUser lifts a ban on userID.
func (a *Actor) UnbanUser(ctx context.Context, userID string) error {
	if err := a.gate(gateModerator, "unban user"); err != nil {
		return err
	}
	if err := a.requireStore(); err != nil {
		return err
	}
	return a.store.SetBanned(ctx, userID, false, "", a.ID())
}

// GrantPermission adds p to userID's custom permissions.
func (a *Actor) GrantPermission(ctx context.Context, userID string, p Permission) error {
	return a.modifyPermission("grant permission", p, func() error {
		return a.store.AddCustomPermission(ctx, userID, p, a.ID())
	})
}

// RevokeGrant removes p from userID's custom permissions.
func (a *Actor) RevokeGrant(ctx context.Context, userID string, p Permission) error {
	return a.modifyPermission("revoke grant", p, func() error {
		return a.store.RemoveCustomPermission(ctx, userID, p, a.ID())
	})
}

// RestrictPermission adds p to userID's restricted permissions.
func (a *Actor) RestrictPermission(ctx context.Context, userID string, p Permission) error {
	return a.modifyPermission("restrict permission", p, func() error {
		return a.store.AddRestrictedPermission(ctx, userID, p, a.ID())
	})
}

// LiftRestriction removes p from userID's restricted permissions.
func (a *Actor) LiftRestriction(ctx context.Context, userID string, p Permission) error {
	return a.modifyPermission("lift restriction", p, func() error {
		return a.store.RemoveRestrictedPermission(ctx, userID, p, a.ID())
	})
}

func (a *Actor) modifyPermission(op string, p Permission, apply func() error) error {
	if err := a.gate(gateAdmin, op); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("rbac: %s: %w: %q", op, ErrUnknownPermission, p.String())
	}
	if err := a.requireStore(); err != nil {
		return err
	}
	return apply()
}

type gateKind int

const (
	gateAdmin gateKind = iota
	gateModerator
)

func (a *Actor) gate(kind gateKind, op string) error {
	if a == nil || a.Authorizer == nil {
		return fmt.Errorf("rbac: %s: %w", op, ErrInsufficientPrivilege)
	}
	var err error
	switch kind {
	case gateAdmin:
		err = a.AuthorizeRoleUpdate()
	case gateModerator:
		err = a.AuthorizeBan()
	}
	if err != nil {
		return fmt.Errorf("rbac: %s: %w", op, err)
	}
	return nil
}

var errNoStore = errors.New("rbac: user store not configured")

func (a *Actor) requireStore() error {
	if a.store == nil {
		return errNoStore
	}
	return nil
}
