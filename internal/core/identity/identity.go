// Package identity normalizes caller and user identifiers. Ids reach the
// system as JSON numbers, database integers and strings; every comparison
// goes through Normalize so 7 and "7" denote the same principal.
package identity

import (
	"strings"

	"github.com/spf13/cast"
)

type GlobalRole string

const (
	RoleAdmin GlobalRole = "admin"
	RoleUser  GlobalRole = "user"
)

func ParseGlobalRole(s string) (GlobalRole, bool) {
	switch GlobalRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// Normalize renders any id value as its canonical string. Values cast cannot
// convert normalize to "" and never match anything.
func Normalize(id interface{}) string {
	if id == nil {
		return ""
	}
	s, err := cast.ToStringE(id)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// Same reports whether a and b denote the same principal.
func Same(a, b interface{}) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Caller is the resolved identity of whoever is making a request.
type Caller struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  GlobalRole `json:"role"`
}

func NewCaller(id interface{}, email string, role GlobalRole) Caller {
	return Caller{ID: Normalize(id), Email: email, Role: role}
}

func (c Caller) Authenticated() bool {
	return c.ID != ""
}

func (c Caller) IsAdmin() bool {
	return c.Authenticated() && c.Role == RoleAdmin
}
