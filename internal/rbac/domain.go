package rbac

import "time"

// SystemRoleID marks a seeded role so renames do not detach it from the
// bootstrap catalog. Custom roles carry an empty marker.
type SystemRoleID string

// Seeded system roles, ordered by descending authority.
const (
	SystemRoleSuperAdmin    SystemRoleID = "system.superadmin"
	SystemRoleAdministrator SystemRoleID = "system.administrator"
	SystemRoleManager       SystemRoleID = "system.manager"
	SystemRoleSupervisor    SystemRoleID = "system.supervisor"
	SystemRoleEmployee      SystemRoleID = "system.employee"
)

// Clearance is a coarse ordinal tier derived from role membership.
type Clearance int

// Clearance tiers from lowest to highest.
const (
	ClearanceMinimal Clearance = iota + 1
	ClearanceLow
	ClearanceModerate
	ClearanceHigh
	ClearanceCritical
)

// Permission represents an atomic capability named Module.Action[.Resource].
type Permission struct {
	ID                 int64
	Name               string
	Module             string
	Action             Action
	Resource           string
	Description        string
	IsSystemPermission bool
	IsActive           bool
}

// Role represents a prioritized permission grouping. Higher Priority means
// more privileged.
type Role struct {
	ID           int64
	Name         string
	Description  string
	Priority     int
	SystemRoleID SystemRoleID
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsSystem reports whether the role was seeded by bootstrap.
func (r Role) IsSystem() bool {
	return r.SystemRoleID != ""
}

// RolePermission links a permission to a role. IsGranted false records an
// explicit revocation, distinct from the absence of a row.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
	IsGranted    bool
	GrantedBy    int64
	GrantedAt    time.Time
	Comment      string
}

// UserRole links a user to a role, optionally as primary, optionally
// time-bounded.
type UserRole struct {
	ID         string
	UserID     int64
	RoleID     int64
	IsPrimary  bool
	IsActive   bool
	ExpiresAt  *time.Time
	AssignedBy int64
	AssignedAt time.Time
	Comment    string
}

// ValidAt reports whether the assignment contributes roles and permissions
// at the given instant.
func (a UserRole) ValidAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// SecurityContext is a point-in-time summary of an actor's authority.
// It is computed on demand and never cached.
type SecurityContext struct {
	UserID                int64
	PrimaryRole           *Role
	Roles                 []Role
	Permissions           []Permission
	HighestPrivilegeLevel int
	IsSystemAdmin         bool
	Clearance             Clearance
	LastPermissionCheck   time.Time
}
