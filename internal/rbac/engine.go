package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Engine answers authorization questions for actors. Every query is
// fail-closed: any failure from the persistence collaborators degrades to
// false, empty or nil, never to an error. Results are cached per actor until
// the administration service invalidates them.
type Engine struct {
	roles       RoleStore
	permissions PermissionStore
	cache       *Cache
	usage       UsageRecorder
	logger      *slog.Logger
	group       singleflight.Group
	now         func() time.Time
}

// NewEngine constructs an Engine. The usage recorder is optional.
func NewEngine(logger *slog.Logger, roles RoleStore, permissions PermissionStore, cache *Cache, usage UsageRecorder) *Engine {
	if cache == nil {
		cache = NewCache()
	}
	return &Engine{
		roles:       roles,
		permissions: permissions,
		cache:       cache,
		usage:       usage,
		logger:      logger,
		now:         time.Now,
	}
}

// HasPermission reports whether the actor holds the named permission.
func (e *Engine) HasPermission(ctx context.Context, userID int64, name string) bool {
	granted := false
	for _, perm := range e.UserPermissions(ctx, userID) {
		if strings.EqualFold(perm.Name, name) {
			granted = true
			break
		}
	}
	e.LogPermissionUsage(userID, name, granted)
	return granted
}

// HasPermissionFor composes the canonical name and tests membership.
func (e *Engine) HasPermissionFor(ctx context.Context, userID int64, module string, action Action, resource string) bool {
	return e.HasPermission(ctx, userID, ComposePermissionName(module, action, resource))
}

// HasAnyPermission short-circuits on the first held permission.
func (e *Engine) HasAnyPermission(ctx context.Context, userID int64, names ...string) bool {
	for _, name := range names {
		if e.HasPermission(ctx, userID, name) {
			return true
		}
	}
	return false
}

// HasAllPermissions short-circuits on the first missing permission.
func (e *Engine) HasAllPermissions(ctx context.Context, userID int64, names ...string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !e.HasPermission(ctx, userID, name) {
			return false
		}
	}
	return true
}

// CanAccess tests the specific (module, action) permission or the broader
// Manage permission on the same module. A Manage grant subsumes every other
// action on its module; this is the one hierarchy rule the engine hard-codes.
func (e *Engine) CanAccess(ctx context.Context, userID int64, module string, action Action) bool {
	return e.HasAnyPermission(ctx, userID,
		ComposePermissionName(module, action, ""),
		ComposePermissionName(module, ActionManage, ""),
	)
}

// IsInRole reports membership by role name (case-insensitive) or system-role
// marker.
func (e *Engine) IsInRole(ctx context.Context, userID int64, nameOrSystemRoleID string) bool {
	for _, role := range e.UserRoles(ctx, userID) {
		if strings.EqualFold(role.Name, nameOrSystemRoleID) || string(role.SystemRoleID) == nameOrSystemRoleID {
			return true
		}
	}
	return false
}

// IsInAnyRole reports whether the actor holds at least one of the roles.
func (e *Engine) IsInAnyRole(ctx context.Context, userID int64, roles ...string) bool {
	for _, role := range roles {
		if e.IsInRole(ctx, userID, role) {
			return true
		}
	}
	return false
}

// IsInAllRoles reports whether the actor holds every listed role.
func (e *Engine) IsInAllRoles(ctx context.Context, userID int64, roles ...string) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !e.IsInRole(ctx, userID, role) {
			return false
		}
	}
	return true
}

// UserPermissions returns the deduplicated union of permissions across the
// actor's currently-valid role assignments. Cached until invalidated.
func (e *Engine) UserPermissions(ctx context.Context, userID int64) []Permission {
	if perms, ok := e.cache.Permissions(userID); ok {
		return perms
	}
	key := fmt.Sprintf("permissions:%d", userID)
	result, err, _ := e.group.Do(key, func() (interface{}, error) {
		perms, err := e.permissions.UserPermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		active := make([]Permission, 0, len(perms))
		seen := make(map[int64]struct{}, len(perms))
		for _, perm := range perms {
			if !perm.IsActive {
				continue
			}
			if _, ok := seen[perm.ID]; ok {
				continue
			}
			seen[perm.ID] = struct{}{}
			active = append(active, perm)
		}
		e.cache.StorePermissions(userID, active)
		return active, nil
	})
	if err != nil {
		e.warn("resolve user permissions", userID, err)
		return nil
	}
	perms, _ := result.([]Permission)
	return perms
}

// UserRoles returns the roles behind the actor's currently-valid
// assignments. Cached until invalidated.
func (e *Engine) UserRoles(ctx context.Context, userID int64) []Role {
	if roles, ok := e.cache.Roles(userID); ok {
		return roles
	}
	key := fmt.Sprintf("roles:%d", userID)
	result, err, _ := e.group.Do(key, func() (interface{}, error) {
		assignments, err := e.roles.UserAssignments(ctx, userID, false)
		if err != nil {
			return nil, err
		}
		now := e.now()
		roles := make([]Role, 0, len(assignments))
		for _, assignment := range assignments {
			if !assignment.ValidAt(now) {
				continue
			}
			role, err := e.roles.GetRoleByID(ctx, assignment.RoleID)
			if err != nil {
				return nil, err
			}
			if !role.IsActive {
				continue
			}
			roles = append(roles, role)
		}
		e.cache.StoreRoles(userID, roles)
		return roles, nil
	})
	if err != nil {
		e.warn("resolve user roles", userID, err)
		return nil
	}
	roles, _ := result.([]Role)
	return roles
}

// EffectivePermissions is an alias of UserPermissions, kept distinct so a
// hierarchy-aware expansion can change it without breaking callers.
func (e *Engine) EffectivePermissions(ctx context.Context, userID int64) []Permission {
	return e.UserPermissions(ctx, userID)
}

// PrimaryRole returns the role behind the actor's primary assignment, or nil.
func (e *Engine) PrimaryRole(ctx context.Context, userID int64) *Role {
	assignments, err := e.roles.UserAssignments(ctx, userID, false)
	if err != nil {
		e.warn("resolve primary role", userID, err)
		return nil
	}
	now := e.now()
	for _, assignment := range assignments {
		if !assignment.IsPrimary || !assignment.ValidAt(now) {
			continue
		}
		role, err := e.roles.GetRoleByID(ctx, assignment.RoleID)
		if err != nil {
			e.warn("resolve primary role", userID, err)
			return nil
		}
		return &role
	}
	return nil
}

// HighestRole returns the actor's role with the greatest priority, or nil.
func (e *Engine) HighestRole(ctx context.Context, userID int64) *Role {
	var highest *Role
	for _, role := range e.UserRoles(ctx, userID) {
		role := role
		if highest == nil || role.Priority > highest.Priority {
			highest = &role
		}
	}
	return highest
}

// SecurityContext assembles the actor's full authorization snapshot.
func (e *Engine) SecurityContext(ctx context.Context, userID int64) SecurityContext {
	roles := e.UserRoles(ctx, userID)
	sc := SecurityContext{
		UserID:              userID,
		Roles:               roles,
		Permissions:         e.UserPermissions(ctx, userID),
		PrimaryRole:         e.PrimaryRole(ctx, userID),
		Clearance:           ClearanceForRoles(roles),
		LastPermissionCheck: e.now(),
	}
	for _, role := range roles {
		if role.Priority > sc.HighestPrivilegeLevel {
			sc.HighestPrivilegeLevel = role.Priority
		}
		if role.SystemRoleID == SystemRoleSuperAdmin {
			sc.IsSystemAdmin = true
		}
	}
	return sc
}

// IsPermissionIncluded reports whether holding parent implies child: true
// only when parent is the Manage action on the same module as child.
func (e *Engine) IsPermissionIncluded(parent, child string) bool {
	parentModule, parentAction, _, err := ParsePermissionName(parent)
	if err != nil {
		return false
	}
	childModule, _, _, err := ParsePermissionName(child)
	if err != nil {
		return false
	}
	return parentAction == ActionManage && strings.EqualFold(parentModule, childModule)
}

// IsRoleIncluded reports whether parent outranks child by priority. The
// hierarchy is purely numeric, not a transitive closure of grants.
func (e *Engine) IsRoleIncluded(parent, child Role) bool {
	return parent.Priority > child.Priority
}

// CanChangeRoles reports whether the requester may modify the target actor's
// role assignments: requires the top administrative role and forbids
// self-modification.
func (e *Engine) CanChangeRoles(ctx context.Context, targetUserID, requesterID int64) bool {
	if targetUserID == requesterID {
		return false
	}
	return e.IsInRole(ctx, requesterID, string(SystemRoleSuperAdmin))
}

// LogPermissionUsage forwards a permission-check outcome to the usage
// collaborator. It never blocks or fails the calling check.
func (e *Engine) LogPermissionUsage(userID int64, permission string, granted bool) {
	if e.usage == nil {
		return
	}
	record := UsageRecord{
		UserID:     userID,
		Permission: permission,
		Granted:    granted,
		CheckedAt:  e.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.usage.RecordUsage(ctx, record); err != nil && e.logger != nil {
			e.logger.Debug("record permission usage", slog.Any("error", err))
		}
	}()
}

// ClearCache drops cached state for one actor.
func (e *Engine) ClearCache(userID int64) {
	e.cache.Clear(userID)
}

// ClearAllCaches drops every cached entry.
func (e *Engine) ClearAllCaches() {
	e.cache.ClearAll()
}

// RefreshCache clears the actor's entries; the next read repopulates lazily.
func (e *Engine) RefreshCache(userID int64) {
	e.cache.Clear(userID)
}

func (e *Engine) warn(msg string, userID int64, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg, slog.Int64("user_id", userID), slog.Any("error", err))
}
