package rbac

import "errors"

var (
	// ErrInsufficientPrivilege rejects a mutation the actor may not perform.
	ErrInsufficientPrivilege = errors.New("rbac: insufficient privilege")
	// ErrUnknownPermission indicates a token outside the permission catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
	// ErrUnknownRole indicates a role outside guest/user/admin.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrRoleNotAssignable rejects role updates to roles admins cannot grant.
	ErrRoleNotAssignable = errors.New("rbac: role not assignable")
	// ErrRoleCycle indicates role inheritance loops back on itself.
	ErrRoleCycle = errors.New("rbac: role inheritance cycle")
)
