package domain

import "strings"

// Role is a per-project grant. The zero value means no access.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleEditor
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleNone:   "",
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleAdmin:  "admin",
}

func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer, true
	case "editor":
		return RoleEditor, true
	case "admin":
		return RoleAdmin, true
	}
	return RoleNone, false
}

func (r Role) String() string {
	return roleNames[r]
}

// AtLeast reports whether r is as permissive as other.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// MostPermissive returns the strongest of the given roles.
func MostPermissive(roles ...Role) Role {
	best := RoleNone
	for _, r := range roles {
		if r > best {
			best = r
		}
	}
	return best
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, ok := ParseRole(string(b))
	if !ok {
		*r = RoleNone
		return nil
	}
	*r = parsed
	return nil
}
