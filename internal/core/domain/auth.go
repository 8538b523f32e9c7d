package domain

import "time"

// Permission is an atomic capability string. A permission may imply lesser
// permissions via the one-hop hierarchy table.
type Permission string

const (
	PermReadProfile        Permission = "read_profile"
	PermUpdateOwnProfile   Permission = "update_own_profile"
	PermViewMemberList     Permission = "view_member_list"
	PermViewEvents         Permission = "view_events"
	PermManageMembers      Permission = "manage_members"
	PermManageEvents       Permission = "manage_events"
	PermViewAdminDashboard Permission = "view_admin_dashboard"
	PermManageAdmins       Permission = "manage_admins"
	PermSystemAdmin        Permission = "system_admin"
)

// Role is a named bundle assigned to a principal, mapped to a fixed
// permission set.
type Role string

const (
	RoleMember     Role = "member"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Principal is an authenticated actor the layer reasons about.
type Principal struct {
	ID    string
	Email string
}

// RoleRecord is what the authorization store holds per principal.
type RoleRecord struct {
	PrincipalID string
	Role        Role
	UpdatedAt   time.Time
}

// RoleVerification is the resolved outcome of a role lookup. Resolution
// failure degrades to the base role rather than erroring.
type RoleVerification struct {
	Principal       Principal
	Role            Role
	Permissions     []Permission
	IsVerified      bool
	FallbackApplied bool
	Err             error
}

// CachedPrincipalSnapshot is the last verified identity/permission tuple.
// Never returned once now >= ExpiresAt.
type CachedPrincipalSnapshot struct {
	Principal   Principal
	Role        Role
	Permissions []Permission
	VerifiedAt  time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the snapshot may no longer be served.
func (s CachedPrincipalSnapshot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
