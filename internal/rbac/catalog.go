package rbac

import (
	"fmt"
	"sync"
)

// Catalog is the immutable role to permission assignment.
type Catalog struct {
	definitions map[Role]RoleDefinition
	order       []Role
	resolved    map[Role]PermissionSet
}

// NewCatalog validates the definitions and resolves inheritance once.
// Unknown roles, invalid permissions, dangling inherits and cycles are
// rejected.
func NewCatalog(defs ...RoleDefinition) (*Catalog, error) {
	c := &Catalog{
		definitions: make(map[Role]RoleDefinition, len(defs)),
		resolved:    make(map[Role]PermissionSet, len(defs)),
	}
	for _, def := range defs {
		if !def.Role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, def.Role)
		}
		if _, dup := c.definitions[def.Role]; dup {
			return nil, fmt.Errorf("rbac: duplicate definition for role %s", def.Role)
		}
		for _, p := range def.Permissions {
			if !p.Valid() {
				return nil, fmt.Errorf("rbac: role %s: %w: %q", def.Role, ErrUnknownPermission, p.String())
			}
		}
		def.Permissions = append([]Permission(nil), def.Permissions...)
		def.Inherits = append([]Role(nil), def.Inherits...)
		c.definitions[def.Role] = def
		c.order = append(c.order, def.Role)
	}
	for _, def := range c.definitions {
		for _, parent := range def.Inherits {
			if _, ok := c.definitions[parent]; !ok {
				return nil, fmt.Errorf("rbac: role %s inherits undefined role %q", def.Role, parent)
			}
		}
	}
	for _, role := range c.order {
		if _, err := c.resolve(role, map[Role]bool{}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNewCatalog panics when the definitions are invalid.
func MustNewCatalog(defs ...RoleDefinition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) resolve(role Role, visiting map[Role]bool) (PermissionSet, error) {
	if set, ok := c.resolved[role]; ok {
		return set, nil
	}
	if visiting[role] {
		return nil, fmt.Errorf("%w: %s", ErrRoleCycle, role)
	}
	visiting[role] = true
	def := c.definitions[role]
	set := NewPermissionSet(def.Permissions...)
	for _, parent := range def.Inherits {
		inherited, err := c.resolve(parent, visiting)
		if err != nil {
			return nil, err
		}
		for p := range inherited {
			set[p] = struct{}{}
		}
	}
	delete(visiting, role)
	c.resolved[role] = set
	return set, nil
}

// RolePermissions returns a copy of the resolved permission set for role.
// Undefined roles resolve to an empty set.
func (c *Catalog) RolePermissions(role Role) PermissionSet {
	if c == nil {
		return PermissionSet{}
	}
	set, ok := c.resolved[role]
	if !ok {
		return PermissionSet{}
	}
	return set.Clone()
}

// GuestPermissions is the fallback set for anonymous and disqualified users.
func (c *Catalog) GuestPermissions() PermissionSet {
	return c.RolePermissions(RoleGuest)
}

// Definition returns the definition registered for role.
func (c *Catalog) Definition(role Role) (RoleDefinition, bool) {
	if c == nil {
		return RoleDefinition{}, false
	}
	def, ok := c.definitions[role]
	if !ok {
		return RoleDefinition{}, false
	}
	def.Permissions = append([]Permission(nil), def.Permissions...)
	def.Inherits = append([]Role(nil), def.Inherits...)
	return def, true
}

// Roles lists the defined roles in definition order.
func (c *Catalog) Roles() []Role {
	if c == nil {
		return nil
	}
	return append([]Role(nil), c.order...)
}

// Permission groups used by the moderation and admin screens.
var (
	ContentCreation   = []Permission{QuestionCreate, AnswerCreate, CommentCreate}
	ContentModeration = []Permission{QuestionModerate, AnswerModerate, CommentModerate}
	UserManagement    = []Permission{UserCreate, UserUpdate, UserDelete, UserBan, UserPromote}
	SystemAdmin       = []Permission{SystemModerate, SystemAnalytics, SystemSettings, SystemLogs}
	Voting            = []Permission{QuestionVote, AnswerVote}
)

// DefaultDefinitions returns the built-in role definitions.
func DefaultDefinitions() []RoleDefinition {
	return []RoleDefinition{
		{
			Role:        RoleGuest,
			DisplayName: "Guest",
			Description: "Anonymous user with read-only access",
			Permissions: []Permission{QuestionRead, AnswerRead, CommentRead},
		},
		{
			Role:        RoleUser,
			DisplayName: "User",
			Description: "Registered user with full participation rights",
			Permissions: []Permission{
				QuestionCreate, QuestionRead, QuestionUpdate, QuestionDelete, QuestionVote,
				AnswerCreate, AnswerRead, AnswerUpdate, AnswerDelete, AnswerVote, AnswerAccept,
				CommentCreate, CommentRead, CommentUpdate, CommentDelete,
				UserRead, UserUpdate,
			},
		},
		{
			Role:        RoleAdmin,
			DisplayName: "Administrator",
			Description: "Full system access with moderation capabilities",
			Permissions: AllPermissions(),
		},
	}
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	return MustNewCatalog(DefaultDefinitions()...)
})

// DefaultCatalog returns the shared built-in catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}
