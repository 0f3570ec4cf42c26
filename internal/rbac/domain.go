package rbac

// RoleDefinition describes the permissions granted by a role.
type RoleDefinition struct {
	Role        Role
	DisplayName string
	Description string
	Permissions []Permission
	Inherits    []Role
}

// Subject is the authorization view of a user record.
type Subject struct {
	ID                    string
	Role                  Role
	IsActive              bool
	IsBanned              bool
	CustomPermissions     []Permission
	RestrictedPermissions []Permission
}

// Disqualified reports whether the subject is folded to guest access.
func (s *Subject) Disqualified() bool {
	return s == nil || !s.IsActive || s.IsBanned
}

func (s *Subject) clone() *Subject {
	if s == nil {
		return nil
	}
	out := *s
	out.CustomPermissions = append([]Permission(nil), s.CustomPermissions...)
	out.RestrictedPermissions = append([]Permission(nil), s.RestrictedPermissions...)
	return &out
}

// ResourceAction is a request to act on a resource, optionally owned by
// OwnerID.
type ResourceAction struct {
	Resource Resource
	Action   Action
	OwnerID  string
}
