// Package access decides which projects a caller can see and with what role.
// Every id comparison goes through identity.Same; raw ids are never compared.
package access

import (
	"github.com/frahmantamala/datashare/internal"
	"github.com/frahmantamala/datashare/internal/core/domain"
	"github.com/frahmantamala/datashare/internal/core/identity"
	"github.com/samber/lo"
)

// AccessibleProjects returns the projects visible to caller, in input order.
// Admins see every project. Everyone else sees the projects they hold at least
// one assignment on; assignments pointing at unknown projects are ignored.
func AccessibleProjects(caller identity.Caller, projects []domain.Project, assignments []domain.Assignment) []domain.Project {
	if !caller.Authenticated() {
		return []domain.Project{}
	}
	if caller.IsAdmin() {
		return append([]domain.Project{}, projects...)
	}

	member := make(map[int64]struct{})
	for _, a := range assignments {
		if identity.Same(a.UserID, caller.ID) {
			member[a.ProjectID] = struct{}{}
		}
	}

	return lo.Filter(projects, func(p domain.Project, _ int) bool {
		_, ok := member[p.ID]
		return ok
	})
}

// EffectiveRole returns the most permissive role caller holds on project.
// Calling it for a non-member returns internal.ErrNotAMember.
func EffectiveRole(caller identity.Caller, project domain.Project, assignments []domain.Assignment) (domain.Role, error) {
	if !caller.Authenticated() {
		return domain.RoleNone, internal.ErrNotAuthenticated
	}
	if caller.IsAdmin() {
		return domain.RoleAdmin, nil
	}

	roles := lo.FilterMap(assignments, func(a domain.Assignment, _ int) (domain.Role, bool) {
		return a.Role, a.ProjectID == project.ID && identity.Same(a.UserID, caller.ID)
	})
	role := domain.MostPermissive(roles...)
	if role == domain.RoleNone {
		return domain.RoleNone, internal.ErrNotAMember
	}
	return role, nil
}

// CanCurate reports whether role may upload data and choose visible columns.
func CanCurate(role domain.Role) bool {
	return role.AtLeast(domain.RoleEditor)
}

// CanManage reports whether caller may create or delete projects, users and
// assignments. Only global admins can.
func CanManage(caller identity.Caller) bool {
	return caller.Authenticated() && caller.IsAdmin()
}
