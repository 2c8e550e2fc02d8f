package rbac

import (
	"context"
	"time"
)

// RoleStore is the persistence collaborator for roles and user-role
// assignments. Implementations own the physical storage; the engine and the
// administration service only consume this contract.
type RoleStore interface {
	GetRoleByID(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	GetRoleBySystemRoleID(ctx context.Context, id SystemRoleID) (Role, error)
	ListRoles(ctx context.Context, includeInactive bool) ([]Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	// AssignRoleToUser upserts by (user, role): an existing assignment is
	// updated in place and keeps its identifier.
	AssignRoleToUser(ctx context.Context, assignment UserRole) (UserRole, error)
	GetAssignment(ctx context.Context, id string) (UserRole, error)
	UpdateAssignment(ctx context.Context, assignment UserRole) (UserRole, error)
	RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error
	UserAssignments(ctx context.Context, userID int64, includeInactive bool) ([]UserRole, error)
	UserHasRole(ctx context.Context, userID int64, roleName string) (bool, error)

	CountValidAssignments(ctx context.Context, roleID int64) (int, error)
	CountDistinctAssignedUsers(ctx context.Context) (int, error)
	CountValidAssignmentsTotal(ctx context.Context) (int, error)
	AssignmentsExpiringWithin(ctx context.Context, window time.Duration) ([]UserRole, error)
}

// PermissionStore is the persistence collaborator for permissions and
// role-permission grants.
type PermissionStore interface {
	GetPermissionByID(ctx context.Context, id int64) (Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)
	GetPermissionsByModule(ctx context.Context, module string) ([]Permission, error)
	GetPermissionsByAction(ctx context.Context, action Action) ([]Permission, error)
	ListPermissions(ctx context.Context, includeInactive bool) ([]Permission, error)
	CreatePermission(ctx context.Context, perm Permission) (Permission, error)
	UpdatePermission(ctx context.Context, perm Permission) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	// GrantToRole upserts by (role, permission): re-granting an existing
	// pair updates it in place rather than duplicating.
	GrantToRole(ctx context.Context, grant RolePermission) error
	// RevokeFromRole records an explicit revocation (IsGranted=false).
	RevokeFromRole(ctx context.Context, roleID, permissionID int64, revokedBy int64, comment string) error
	RolePermissions(ctx context.Context, roleID int64, includeRevoked bool) ([]Permission, error)
	RoleGrants(ctx context.Context, roleID int64) ([]RolePermission, error)

	// UserPermissions returns the deduplicated union of granted permissions
	// across the user's currently-valid role assignments.
	UserPermissions(ctx context.Context, userID int64) ([]Permission, error)
	UserHasPermission(ctx context.Context, userID int64, name string) (bool, error)

	// CountRolesGranting counts active roles with a live grant for the
	// permission; used by deletion guards and usage statistics.
	CountRolesGranting(ctx context.Context, permissionID int64) (int, error)
	GrantCountsByPermission(ctx context.Context) (map[int64]int, error)
}
