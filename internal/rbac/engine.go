package rbac

// Authorizer answers permission queries for one subject. It is built once per
// acting user and never mutated; a different user needs a new Authorizer.
type Authorizer struct {
	catalog   *Catalog
	subject   *Subject
	effective PermissionSet
}

var ownershipRequired = NewPermissionSet(
	QuestionUpdate, QuestionDelete,
	AnswerUpdate, AnswerDelete, AnswerAccept,
	CommentUpdate, CommentDelete,
	UserUpdate,
)

// New builds an Authorizer for subject. A nil subject is an anonymous guest;
// a nil catalog falls back to DefaultCatalog.
func New(catalog *Catalog, subject *Subject) *Authorizer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	a := &Authorizer{catalog: catalog, subject: subject.clone()}
	a.effective = effectivePermissions(catalog, a.subject)
	return a
}

// Guest returns an Authorizer for an anonymous actor.
func Guest(catalog *Catalog) *Authorizer {
	return New(catalog, nil)
}

func effectivePermissions(catalog *Catalog, subject *Subject) PermissionSet {
	if subject.Disqualified() {
		return catalog.GuestPermissions()
	}
	set := catalog.RolePermissions(subject.Role)
	set.Add(subject.CustomPermissions...)
	set.Remove(subject.RestrictedPermissions...)
	return set
}

// RequiresOwnership reports whether p is limited to the resource owner unless
// the actor can moderate.
func RequiresOwnership(p Permission) bool {
	return ownershipRequired.Has(p)
}

// HasPermission reports whether p is in the effective permission set.
func (a *Authorizer) HasPermission(p Permission) bool {
	if a == nil {
		return false
	}
	return a.effective.Has(p)
}

// HasAnyPermission reports whether at least one of perms is granted.
func (a *Authorizer) HasAnyPermission(perms ...Permission) bool {
	for _, p := range perms {
		if a.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of perms is granted.
func (a *Authorizer) HasAllPermissions(perms ...Permission) bool {
	for _, p := range perms {
		if !a.HasPermission(p) {
			return false
		}
	}
	return true
}

// IsOwner reports whether the subject's id equals ownerID.
func (a *Authorizer) IsOwner(ownerID string) bool {
	if a == nil || a.subject == nil || ownerID == "" {
		return false
	}
	return a.subject.ID == ownerID
}

// CanModerate reports whether the subject may act on other users' content.
// The owner id is accepted for call-site symmetry; moderation is role based
// and does not look at it.
func (a *Authorizer) CanModerate(ownerID ...string) bool {
	if a.HasPermission(SystemModerate) {
		return true
	}
	return a.HasAnyPermission(ContentModeration...)
}

// CanVote reports whether the subject may vote on content owned by ownerID.
// Voting on one's own content is never allowed.
func (a *Authorizer) CanVote(ownerID ...string) bool {
	if len(ownerID) > 0 && a.IsOwner(ownerID[0]) {
		return false
	}
	return a.HasAnyPermission(Voting...)
}

// CanEdit reports whether the subject owns the content or can moderate it.
func (a *Authorizer) CanEdit(ownerID string) bool {
	return a.IsOwner(ownerID) || a.CanModerate()
}

// CanDelete reports whether the subject owns the content or can moderate it.
func (a *Authorizer) CanDelete(ownerID string) bool {
	return a.IsOwner(ownerID) || a.CanModerate()
}

// CanPerformAction checks the resource:action permission and, for
// ownership-restricted permissions with a known owner, ownership or
// moderation rights.
func (a *Authorizer) CanPerformAction(req ResourceAction) bool {
	p, err := NewPermission(req.Resource, req.Action)
	if err != nil {
		return false
	}
	if !a.HasPermission(p) {
		return false
	}
	if RequiresOwnership(p) && req.OwnerID != "" {
		return a.IsOwner(req.OwnerID) || a.CanModerate()
	}
	return true
}

// IsAdmin reports an active, unbanned administrator.
func (a *Authorizer) IsAdmin() bool {
	if a == nil || a.subject.Disqualified() {
		return false
	}
	return a.subject.Role == RoleAdmin
}

// HasRole reports whether the subject's role is at least role. Anonymous
// actors only satisfy guest.
func (a *Authorizer) HasRole(role Role) bool {
	if a == nil || a.subject == nil {
		return role == RoleGuest
	}
	return a.subject.Role.AtLeast(role)
}

// Permissions returns the effective permission set in sorted order.
func (a *Authorizer) Permissions() []Permission {
	if a == nil {
		return nil
	}
	return a.effective.Sorted()
}

// RoleDisplayName returns the catalog display name of the subject's role.
func (a *Authorizer) RoleDisplayName() string {
	if a == nil || a.subject == nil {
		return "Guest"
	}
	def, ok := a.catalog.Definition(a.subject.Role)
	if !ok || def.DisplayName == "" {
		return "Unknown"
	}
	return def.DisplayName
}

// AuthorizeRoleUpdate gates role changes on administrator status.
func (a *Authorizer) AuthorizeRoleUpdate() error {
	if !a.IsAdmin() {
		return ErrInsufficientPrivilege
	}
	return nil
}

// AuthorizeBan gates ban and unban on moderation rights.
func (a *Authorizer) AuthorizeBan() error {
	if !a.CanModerate() {
		return ErrInsufficientPrivilege
	}
	return nil
}

// Subject returns a copy of the bound subject, or nil for anonymous actors.
func (a *Authorizer) Subject() *Subject {
	if a == nil {
		return nil
	}
	return a.subject.clone()
}

// Catalog exposes the catalog the Authorizer resolved against.
func (a *Authorizer) Catalog() *Catalog {
	if a == nil {
		return DefaultCatalog()
	}
	return a.catalog
}
