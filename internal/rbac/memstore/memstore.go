// Package memstore provides an in-memory implementation of the RBAC store
// contracts, used by tests and local development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-suite/meridian/internal/rbac"
)

// Store implements rbac.RoleStore and rbac.PermissionStore on process-local
// maps. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	roles       map[int64]rbac.Role
	permissions map[int64]rbac.Permission
	grants      map[string]rbac.RolePermission
	assignments map[string]rbac.UserRole

	nextRoleID       int64
	nextPermissionID int64

	now func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		roles:       make(map[int64]rbac.Role),
		permissions: make(map[int64]rbac.Permission),
		grants:      make(map[string]rbac.RolePermission),
		assignments: make(map[string]rbac.UserRole),
		now:         time.Now,
	}
}

// SetClock overrides the store's notion of now, for expiry tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func grantKey(roleID, permissionID int64) string {
	return fmt.Sprintf("%d:%d", roleID, permissionID)
}

// GetRoleByID implements rbac.RoleStore.
func (s *Store) GetRoleByID(ctx context.Context, id int64) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return role, nil
}

// GetRoleByName implements rbac.RoleStore.
func (s *Store) GetRoleByName(ctx context.Context, name string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if strings.EqualFold(role.Name, name) {
			return role, nil
		}
	}
	return rbac.Role{}, rbac.ErrNotFound
}

// GetRoleBySystemRoleID implements rbac.RoleStore.
func (s *Store) GetRoleBySystemRoleID(ctx context.Context, id rbac.SystemRoleID) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.SystemRoleID == id {
			return role, nil
		}
	}
	return rbac.Role{}, rbac.ErrNotFound
}

// ListRoles implements rbac.RoleStore.
func (s *Store) ListRoles(ctx context.Context, includeInactive bool) ([]rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []rbac.Role
	for _, role := range s.roles {
		if !includeInactive && !role.IsActive {
			continue
		}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Priority != roles[j].Priority {
			return roles[i].Priority > roles[j].Priority
		}
		return roles[i].Name < roles[j].Name
	})
	return roles, nil
}

// CreateRole implements rbac.RoleStore.
func (s *Store) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return rbac.Role{}, fmt.Errorf("role %q: %w", role.Name, rbac.ErrDuplicate)
		}
	}
	s.nextRoleID++
	role.ID = s.nextRoleID
	s.roles[role.ID] = role
	return role, nil
}

// UpdateRole implements rbac.RoleStore.
func (s *Store) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.roles[role.ID]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	role.SystemRoleID = current.SystemRoleID
	s.roles[role.ID] = role
	return role, nil
}

// DeleteRole implements rbac.RoleStore.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.roles, id)
	for key, grant := range s.grants {
		if grant.RoleID == id {
			delete(s.grants, key)
		}
	}
	for key, assignment := range s.assignments {
		if assignment.RoleID == id {
			delete(s.assignments, key)
		}
	}
	return nil
}

// AssignRoleToUser implements rbac.RoleStore.
func (s *Store) AssignRoleToUser(ctx context.Context, assignment rbac.UserRole) (rbac.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.assignments {
		if existing.UserID == assignment.UserID && existing.RoleID == assignment.RoleID {
			assignment.ID = id
			s.assignments[id] = assignment
			return assignment, nil
		}
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	s.assignments[assignment.ID] = assignment
	return assignment, nil
}

// GetAssignment implements rbac.RoleStore.
func (s *Store) GetAssignment(ctx context.Context, id string) (rbac.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment, ok := s.assignments[id]
	if !ok {
		return rbac.UserRole{}, rbac.ErrNotFound
	}
	return assignment, nil
}

// UpdateAssignment implements rbac.RoleStore.
func (s *Store) UpdateAssignment(ctx context.Context, assignment rbac.UserRole) (rbac.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[assignment.ID]; !ok {
		return rbac.UserRole{}, rbac.ErrNotFound
	}
	s.assignments[assignment.ID] = assignment
	return assignment, nil
}

// RemoveRoleFromUser implements rbac.RoleStore.
func (s *Store) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, assignment := range s.assignments {
		if assignment.UserID == userID && assignment.RoleID == roleID {
			delete(s.assignments, id)
			return nil
		}
	}
	return rbac.ErrNotFound
}

// UserAssignments implements rbac.RoleStore.
func (s *Store) UserAssignments(ctx context.Context, userID int64, includeInactive bool) ([]rbac.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var assignments []rbac.UserRole
	for _, assignment := range s.assignments {
		if assignment.UserID != userID {
			continue
		}
		if !includeInactive && !assignment.IsActive {
			continue
		}
		assignments = append(assignments, assignment)
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].AssignedAt.Before(assignments[j].AssignedAt)
	})
	return assignments, nil
}

// UserHasRole implements rbac.RoleStore.
func (s *Store) UserHasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, assignment := range s.assignments {
		if assignment.UserID != userID || !assignment.ValidAt(now) {
			continue
		}
		role, ok := s.roles[assignment.RoleID]
		if ok && role.IsActive && strings.EqualFold(role.Name, roleName) {
			return true, nil
		}
	}
	return false, nil
}

// CountValidAssignments implements rbac.RoleStore.
func (s *Store) CountValidAssignments(ctx context.Context, roleID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for _, assignment := range s.assignments {
		if assignment.RoleID == roleID && assignment.ValidAt(now) {
			count++
		}
	}
	return count, nil
}

// CountDistinctAssignedUsers implements rbac.RoleStore.
func (s *Store) CountDistinctAssignedUsers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	users := make(map[int64]struct{})
	for _, assignment := range s.assignments {
		if assignment.ValidAt(now) {
			users[assignment.UserID] = struct{}{}
		}
	}
	return len(users), nil
}

// CountValidAssignmentsTotal implements rbac.RoleStore.
func (s *Store) CountValidAssignmentsTotal(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for _, assignment := range s.assignments {
		if assignment.ValidAt(now) {
			count++
		}
	}
	return count, nil
}

// AssignmentsExpiringWithin implements rbac.RoleStore.
func (s *Store) AssignmentsExpiringWithin(ctx context.Context, window time.Duration) ([]rbac.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	deadline := now.Add(window)
	var expiring []rbac.UserRole
	for _, assignment := range s.assignments {
		if !assignment.IsActive || assignment.ExpiresAt == nil {
			continue
		}
		if assignment.ExpiresAt.After(now) && !assignment.ExpiresAt.After(deadline) {
			expiring = append(expiring, assignment)
		}
	}
	sort.Slice(expiring, func(i, j int) bool {
		return expiring[i].ExpiresAt.Before(*expiring[j].ExpiresAt)
	})
	return expiring, nil
}

// GetPermissionByID implements rbac.PermissionStore.
func (s *Store) GetPermissionByID(ctx context.Context, id int64) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perm, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	return perm, nil
}

// GetPermissionByName implements rbac.PermissionStore.
func (s *Store) GetPermissionByName(ctx context.Context, name string) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, perm := range s.permissions {
		if strings.EqualFold(perm.Name, name) {
			return perm, nil
		}
	}
	return rbac.Permission{}, rbac.ErrNotFound
}

// GetPermissionsByModule implements rbac.PermissionStore.
func (s *Store) GetPermissionsByModule(ctx context.Context, module string) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []rbac.Permission
	for _, perm := range s.permissions {
		if strings.EqualFold(perm.Module, module) {
			perms = append(perms, perm)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

// GetPermissionsByAction implements rbac.PermissionStore.
func (s *Store) GetPermissionsByAction(ctx context.Context, action rbac.Action) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []rbac.Permission
	for _, perm := range s.permissions {
		if perm.Action == action {
			perms = append(perms, perm)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

// ListPermissions implements rbac.PermissionStore.
func (s *Store) ListPermissions(ctx context.Context, includeInactive bool) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []rbac.Permission
	for _, perm := range s.permissions {
		if !includeInactive && !perm.IsActive {
			continue
		}
		perms = append(perms, perm)
	}
	sortPermissions(perms)
	return perms, nil
}

// CreatePermission implements rbac.PermissionStore.
func (s *Store) CreatePermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if strings.EqualFold(existing.Name, perm.Name) {
			return rbac.Permission{}, fmt.Errorf("permission %q: %w", perm.Name, rbac.ErrDuplicate)
		}
	}
	s.nextPermissionID++
	perm.ID = s.nextPermissionID
	s.permissions[perm.ID] = perm
	return perm, nil
}

// UpdatePermission implements rbac.PermissionStore.
func (s *Store) UpdatePermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.permissions[perm.ID]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	perm.IsSystemPermission = current.IsSystemPermission
	s.permissions[perm.ID] = perm
	return perm, nil
}

// DeletePermission implements rbac.PermissionStore.
func (s *Store) DeletePermission(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.permissions, id)
	for key, grant := range s.grants {
		if grant.PermissionID == id {
			delete(s.grants, key)
		}
	}
	return nil
}

// GrantToRole implements rbac.PermissionStore.
func (s *Store) GrantToRole(ctx context.Context, grant rbac.RolePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey(grant.RoleID, grant.PermissionID)] = grant
	return nil
}

// RevokeFromRole implements rbac.PermissionStore.
func (s *Store) RevokeFromRole(ctx context.Context, roleID, permissionID, revokedBy int64, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey(roleID, permissionID)
	grant, ok := s.grants[key]
	if !ok {
		return rbac.ErrNotFound
	}
	grant.IsGranted = false
	grant.GrantedBy = revokedBy
	grant.GrantedAt = s.now()
	grant.Comment = comment
	s.grants[key] = grant
	return nil
}

// RolePermissions implements rbac.PermissionStore.
func (s *Store) RolePermissions(ctx context.Context, roleID int64, includeRevoked bool) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []rbac.Permission
	for _, grant := range s.grants {
		if grant.RoleID != roleID {
			continue
		}
		if !includeRevoked && !grant.IsGranted {
			continue
		}
		if perm, ok := s.permissions[grant.PermissionID]; ok {
			perms = append(perms, perm)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

// RoleGrants implements rbac.PermissionStore.
func (s *Store) RoleGrants(ctx context.Context, roleID int64) ([]rbac.RolePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []rbac.RolePermission
	for _, grant := range s.grants {
		if grant.RoleID == roleID {
			grants = append(grants, grant)
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].PermissionID < grants[j].PermissionID
	})
	return grants, nil
}

// UserPermissions implements rbac.PermissionStore.
func (s *Store) UserPermissions(ctx context.Context, userID int64) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	seen := make(map[int64]struct{})
	var perms []rbac.Permission
	for _, assignment := range s.assignments {
		if assignment.UserID != userID || !assignment.ValidAt(now) {
			continue
		}
		role, ok := s.roles[assignment.RoleID]
		if !ok || !role.IsActive {
			continue
		}
		for _, grant := range s.grants {
			if grant.RoleID != role.ID || !grant.IsGranted {
				continue
			}
			perm, ok := s.permissions[grant.PermissionID]
			if !ok || !perm.IsActive {
				continue
			}
			if _, dup := seen[perm.ID]; dup {
				continue
			}
			seen[perm.ID] = struct{}{}
			perms = append(perms, perm)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

// UserHasPermission implements rbac.PermissionStore.
func (s *Store) UserHasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	perms, err := s.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, perm := range perms {
		if strings.EqualFold(perm.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// CountRolesGranting implements rbac.PermissionStore.
func (s *Store) CountRolesGranting(ctx context.Context, permissionID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, grant := range s.grants {
		if grant.PermissionID != permissionID || !grant.IsGranted {
			continue
		}
		if role, ok := s.roles[grant.RoleID]; ok && role.IsActive {
			count++
		}
	}
	return count, nil
}

// GrantCountsByPermission implements rbac.PermissionStore.
func (s *Store) GrantCountsByPermission(ctx context.Context) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int64]int)
	for _, grant := range s.grants {
		if !grant.IsGranted {
			continue
		}
		if role, ok := s.roles[grant.RoleID]; ok && role.IsActive {
			counts[grant.PermissionID]++
		}
	}
	return counts, nil
}

func sortPermissions(perms []rbac.Permission) {
	sort.Slice(perms, func(i, j int) bool {
		return perms[i].Name < perms[j].Name
	})
}
