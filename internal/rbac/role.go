package rbac

import (
	"fmt"
	"strings"
)

// Role is a coarse actor classification.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultRole is assigned to newly registered users.
const DefaultRole = RoleUser

// AssignableRoles lists the roles an administrator may hand out.
var AssignableRoles = []Role{RoleUser, RoleAdmin}

var roleLevels = map[Role]int{
	RoleGuest: 0,
	RoleUser:  1,
	RoleAdmin: 2,
}

// ParseRole maps a stored role name onto the closed set.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := roleLevels[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Valid reports whether r is one of guest, user or admin.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level orders roles; unknown roles sit below guest.
func (r Role) Level() int {
	if lvl, ok := roleLevels[r]; ok {
		return lvl
	}
	return -1
}

// AtLeast reports whether r ranks at or above other in the hierarchy.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && other.Valid() && r.Level() >= other.Level()
}

// Assignable reports whether administrators may grant r.
func (r Role) Assignable() bool {
	for _, a := range AssignableRoles {
		if a == r {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// Minimum roles for coarse feature areas.
var RoleRequirements = struct {
	CreateContent   Role
	ModerateContent Role
	ManageUsers     Role
	AccessAnalytics Role
}{
	CreateContent:   RoleUser,
	ModerateContent: RoleAdmin,
	ManageUsers:     RoleAdmin,
	AccessAnalytics: RoleAdmin,
}
