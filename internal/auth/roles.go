// Package auth resolves principal roles and permissions from the
// authorization store, with deterministic fallback to the base role, and
// keeps the time-boxed snapshot used for offline operation.
package auth

import (
	"fmt"

	"github.com/vietddude/shield/internal/core/domain"
)

// BaseRole is the minimal role every resolution can fall back to.
const BaseRole = domain.RoleMember

// rolePermissions is the static role → permission-set table.
var rolePermissions = map[domain.Role][]domain.Permission{
	domain.RoleMember: {
		domain.PermReadProfile,
		domain.PermUpdateOwnProfile,
	},
	domain.RoleModerator: {
		domain.PermReadProfile,
		domain.PermUpdateOwnProfile,
		domain.PermViewMemberList,
		domain.PermViewEvents,
		domain.PermManageEvents,
	},
	domain.RoleAdmin: {
		domain.PermReadProfile,
		domain.PermUpdateOwnProfile,
		domain.PermManageMembers,
		domain.PermManageEvents,
		domain.PermViewAdminDashboard,
		domain.PermManageAdmins,
	},
	domain.RoleSuperAdmin: {
		domain.PermReadProfile,
		domain.PermUpdateOwnProfile,
		domain.PermManageMembers,
		domain.PermManageEvents,
		domain.PermViewAdminDashboard,
		domain.PermManageAdmins,
		domain.PermSystemAdmin,
	},
}

// permissionHierarchy is the flat one-hop implication table. It is data,
// not a type hierarchy: holding the key grants each listed permission.
var permissionHierarchy = map[domain.Permission][]domain.Permission{
	domain.PermSystemAdmin:   {domain.PermManageAdmins},
	domain.PermManageAdmins:  {domain.PermManageMembers, domain.PermViewAdminDashboard},
	domain.PermManageMembers: {domain.PermViewMemberList},
	domain.PermManageEvents:  {domain.PermViewEvents},
}

// PermissionsFor returns the static permission set of a role. Unknown
// roles get the base role's set.
func PermissionsFor(role domain.Role) []domain.Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = rolePermissions[BaseRole]
	}
	out := make([]domain.Permission, len(perms))
	copy(out, perms)
	return out
}

// KnownRole reports whether the role exists in the static table.
func KnownRole(role domain.Role) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Granted reports whether target is directly in perms or implied by one
// hierarchy hop from a granted permission. Default is deny.
func Granted(perms []domain.Permission, target domain.Permission) bool {
	for _, p := range perms {
		if p == target {
			return true
		}
		for _, implied := range permissionHierarchy[p] {
			if implied == target {
				return true
			}
		}
	}
	return false
}

// ValidateHierarchy rejects implication cycles. The table is one-hop, so a
// cycle means some permission is reachable from itself by following
// implications transitively.
func ValidateHierarchy() error {
	for start := range permissionHierarchy {
		visited := map[domain.Permission]bool{}
		stack := []domain.Permission{start}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, implied := range permissionHierarchy[p] {
				if implied == start {
					return fmt.Errorf("permission hierarchy cycle through %q", start)
				}
				if !visited[implied] {
					visited[implied] = true
					stack = append(stack, implied)
				}
			}
		}
	}
	return nil
}
