package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CacheInvalidator is the slice of the engine the administration service is
// allowed to touch. Mutations complete only after the corresponding entries
// are dropped.
type CacheInvalidator interface {
	ClearCache(userID int64)
	ClearAllCaches()
}

// AdminService is the write path: role and permission lifecycle, grants,
// assignments, statistics and the deletion/escalation guards. It is the only
// component permitted to invalidate the engine's cache.
type AdminService struct {
	roles       RoleStore
	permissions PermissionStore
	invalidator CacheInvalidator
	bootstrap   *Bootstrapper
	logger      *slog.Logger
	now         func() time.Time
}

// NewAdminService constructs the administration service. The bootstrapper is
// optional; without it the system-initialization wrappers fail.
func NewAdminService(logger *slog.Logger, roles RoleStore, permissions PermissionStore, invalidator CacheInvalidator, bootstrap *Bootstrapper) *AdminService {
	return &AdminService{
		roles:       roles,
		permissions: permissions,
		invalidator: invalidator,
		bootstrap:   bootstrap,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateRoleInput collects parameters for CreateRole.
type CreateRoleInput struct {
	Name          string
	Description   string
	Priority      int
	PermissionIDs []int64
	Actor         int64
}

// UpdateRoleInput collects parameters for UpdateRole.
type UpdateRoleInput struct {
	ID          int64
	Name        string
	Description string
	Priority    int
	Actor       int64
}

// AssignRoleInput collects parameters for AssignRole.
type AssignRoleInput struct {
	UserID     int64
	RoleID     int64
	AssignedBy int64
	IsPrimary  bool
	ExpiresAt  *time.Time
	Comment    string
}

// AssignmentSpec describes one desired assignment for UpdateUserRoles.
type AssignmentSpec struct {
	RoleID    int64
	IsPrimary bool
	ExpiresAt *time.Time
	Comment   string
}

// UpdateAssignmentInput collects parameters for UpdateAssignment.
type UpdateAssignmentInput struct {
	AssignmentID string
	IsActive     bool
	IsPrimary    bool
	ExpiresAt    *time.Time
	UpdatedBy    int64
	Comment      string
}

// ListRoles returns roles, optionally including deactivated ones.
func (s *AdminService) ListRoles(ctx context.Context, includeInactive bool) ([]Role, error) {
	return s.roles.ListRoles(ctx, includeInactive)
}

// GetRole fetches a role by ID.
func (s *AdminService) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.roles.GetRoleByID(ctx, id)
}

// GetRoleByName fetches a role by exact name.
func (s *AdminService) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.roles.GetRoleByName(ctx, name)
}

// CreateRole inserts a role and grants its initial permission set.
func (s *AdminService) CreateRole(ctx context.Context, in CreateRoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required: %w", ErrConstraint)
	}
	dup, err := s.IsRoleNameDuplicate(ctx, name, 0)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: check role name: %w", err)
	}
	if dup {
		return Role{}, fmt.Errorf("rbac: role %q: %w", name, ErrDuplicate)
	}
	now := s.now()
	role, err := s.roles.CreateRole(ctx, Role{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: create role %q: %w", name, err)
	}
	for _, permID := range in.PermissionIDs {
		if err := s.permissions.GrantToRole(ctx, RolePermission{
			RoleID:       role.ID,
			PermissionID: permID,
			IsGranted:    true,
			GrantedBy:    in.Actor,
			GrantedAt:    now,
		}); err != nil {
			return Role{}, fmt.Errorf("rbac: grant permission %d to role %q: %w", permID, name, err)
		}
	}
	s.invalidator.ClearAllCaches()
	return role, nil
}

// UpdateRole updates name, description and priority.
func (s *AdminService) UpdateRole(ctx context.Context, in UpdateRoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required: %w", ErrConstraint)
	}
	role, err := s.roles.GetRoleByID(ctx, in.ID)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: role %d: %w", in.ID, err)
	}
	dup, err := s.IsRoleNameDuplicate(ctx, name, in.ID)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: check role name: %w", err)
	}
	if dup {
		return Role{}, fmt.Errorf("rbac: role %q: %w", name, ErrDuplicate)
	}
	role.Name = name
	role.Description = strings.TrimSpace(in.Description)
	role.Priority = in.Priority
	role.UpdatedAt = s.now()
	updated, err := s.roles.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: update role %d: %w", in.ID, err)
	}
	s.invalidator.ClearAllCaches()
	return updated, nil
}

// DeleteRole removes a role. System roles and roles with currently-valid
// assignments are protected.
func (s *AdminService) DeleteRole(ctx context.Context, id, actor int64) error {
	ok, reason, err := s.CanDeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rbac: delete role %d: %s: %w", id, reason, ErrConstraint)
	}
	if err := s.roles.DeleteRole(ctx, id); err != nil {
		return fmt.Errorf("rbac: delete role %d: %w", id, err)
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// ActivateRole re-enables a deactivated role.
func (s *AdminService) ActivateRole(ctx context.Context, id, actor int64) error {
	return s.setRoleActive(ctx, id, true)
}

// DeactivateRole disables a role without deleting it. Holders lose its
// permissions on their next check.
func (s *AdminService) DeactivateRole(ctx context.Context, id, actor int64) error {
	return s.setRoleActive(ctx, id, false)
}

func (s *AdminService) setRoleActive(ctx context.Context, id int64, active bool) error {
	role, err := s.roles.GetRoleByID(ctx, id)
	if err != nil {
		return fmt.Errorf("rbac: role %d: %w", id, err)
	}
	role.IsActive = active
	role.UpdatedAt = s.now()
	if _, err := s.roles.UpdateRole(ctx, role); err != nil {
		return fmt.Errorf("rbac: update role %d: %w", id, err)
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// RolePermissions lists the currently granted permissions of a role.
func (s *AdminService) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.permissions.RolePermissions(ctx, roleID, false)
}

// AddPermissionToRole grants one permission, updating an existing pair in
// place.
func (s *AdminService) AddPermissionToRole(ctx context.Context, roleID, permissionID, actor int64, comment string) error {
	if _, err := s.roles.GetRoleByID(ctx, roleID); err != nil {
		return fmt.Errorf("rbac: role %d: %w", roleID, err)
	}
	if _, err := s.permissions.GetPermissionByID(ctx, permissionID); err != nil {
		return fmt.Errorf("rbac: permission %d: %w", permissionID, err)
	}
	err := s.permissions.GrantToRole(ctx, RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		IsGranted:    true,
		GrantedBy:    actor,
		GrantedAt:    s.now(),
		Comment:      comment,
	})
	if err != nil {
		return fmt.Errorf("rbac: grant permission %d to role %d: %w", permissionID, roleID, err)
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// RemovePermissionFromRole records an explicit revocation.
func (s *AdminService) RemovePermissionFromRole(ctx context.Context, roleID, permissionID, actor int64, comment string) error {
	if err := s.permissions.RevokeFromRole(ctx, roleID, permissionID, actor, comment); err != nil {
		return fmt.Errorf("rbac: revoke permission %d from role %d: %w", permissionID, roleID, err)
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// UpdateRolePermissions replaces a role's grant set: missing permissions are
// granted, extras revoked, existing grants left untouched.
func (s *AdminService) UpdateRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, actor int64) error {
	current, err := s.permissions.RolePermissions(ctx, roleID, false)
	if err != nil {
		return fmt.Errorf("rbac: list role %d permissions: %w", roleID, err)
	}
	existing := make(map[int64]struct{}, len(current))
	for _, perm := range current {
		existing[perm.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	now := s.now()
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; ok {
			continue
		}
		if err := s.permissions.GrantToRole(ctx, RolePermission{
			RoleID:       roleID,
			PermissionID: id,
			IsGranted:    true,
			GrantedBy:    actor,
			GrantedAt:    now,
		}); err != nil {
			return fmt.Errorf("rbac: grant permission %d to role %d: %w", id, roleID, err)
		}
	}
	for id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := s.permissions.RevokeFromRole(ctx, roleID, id, actor, "replaced"); err != nil {
			return fmt.Errorf("rbac: revoke permission %d from role %d: %w", id, roleID, err)
		}
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// ListPermissions returns permissions, optionally including inactive ones.
func (s *AdminService) ListPermissions(ctx context.Context, includeInactive bool) ([]Permission, error) {
	return s.permissions.ListPermissions(ctx, includeInactive)
}

// CreatePermission registers a new capability. The name must follow the
// Module.Action[.Resource] convention and be unique.
func (s *AdminService) CreatePermission(ctx context.Context, name, description string, actor int64) (Permission, error) {
	module, action, resource, err := ParsePermissionName(strings.TrimSpace(name))
	if err != nil {
		return Permission{}, err
	}
	canonical := ComposePermissionName(module, action, resource)
	existing, err := s.permissions.GetPermissionByName(ctx, canonical)
	switch {
	case err == nil && existing.ID != 0:
		return Permission{}, fmt.Errorf("rbac: permission %q: %w", canonical, ErrDuplicate)
	case err != nil && !errors.Is(err, ErrNotFound):
		return Permission{}, fmt.Errorf("rbac: check permission %q: %w", canonical, err)
	}
	perm, err := s.permissions.CreatePermission(ctx, Permission{
		Name:        canonical,
		Module:      module,
		Action:      action,
		Resource:    resource,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	})
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: create permission %q: %w", canonical, err)
	}
	return perm, nil
}

// UpdatePermission changes a permission's description or active flag. System
// permissions cannot be renamed.
func (s *AdminService) UpdatePermission(ctx context.Context, perm Permission, actor int64) (Permission, error) {
	current, err := s.permissions.GetPermissionByID(ctx, perm.ID)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: permission %d: %w", perm.ID, err)
	}
	if current.IsSystemPermission && !strings.EqualFold(current.Name, perm.Name) {
		return Permission{}, fmt.Errorf("rbac: system permission %q cannot be renamed: %w", current.Name, ErrConstraint)
	}
	if !strings.EqualFold(current.Name, perm.Name) {
		module, action, resource, err := ParsePermissionName(strings.TrimSpace(perm.Name))
		if err != nil {
			return Permission{}, err
		}
		canonical := ComposePermissionName(module, action, resource)
		existing, err := s.permissions.GetPermissionByName(ctx, canonical)
		switch {
		case err == nil && existing.ID != perm.ID:
			return Permission{}, fmt.Errorf("rbac: permission %q: %w", canonical, ErrDuplicate)
		case err != nil && !errors.Is(err, ErrNotFound):
			return Permission{}, fmt.Errorf("rbac: check permission %q: %w", canonical, err)
		}
		perm.Name = canonical
		perm.Module = module
		perm.Action = action
		perm.Resource = resource
	}
	updated, err := s.permissions.UpdatePermission(ctx, perm)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: update permission %d: %w", perm.ID, err)
	}
	s.invalidator.ClearAllCaches()
	return updated, nil
}

// DeletePermission removes a permission unless it is a system permission or
// still granted by an active role.
func (s *AdminService) DeletePermission(ctx context.Context, id, actor int64) error {
	perm, err := s.permissions.GetPermissionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("rbac: permission %d: %w", id, err)
	}
	if perm.IsSystemPermission {
		return fmt.Errorf("rbac: system permission %q cannot be deleted: %w", perm.Name, ErrConstraint)
	}
	count, err := s.permissions.CountRolesGranting(ctx, id)
	if err != nil {
		return fmt.Errorf("rbac: count grants for permission %d: %w", id, err)
	}
	if count > 0 {
		return fmt.Errorf("rbac: permission %q granted by %d active roles: %w", perm.Name, count, ErrConstraint)
	}
	if err := s.permissions.DeletePermission(ctx, id); err != nil {
		return fmt.Errorf("rbac: delete permission %d: %w", id, err)
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// UserRoleAssignments lists a user's assignments.
func (s *AdminService) UserRoleAssignments(ctx context.Context, userID int64, includeInactive bool) ([]UserRole, error) {
	return s.roles.UserAssignments(ctx, userID, includeInactive)
}

// AssignRole attaches a role to a user, upserting by (user, role). A primary
// assignment demotes any previous primary so at most one remains. A non-zero
// assigner must pass the escalation guard.
func (s *AdminService) AssignRole(ctx context.Context, in AssignRoleInput) (UserRole, error) {
	role, err := s.roles.GetRoleByID(ctx, in.RoleID)
	if err != nil {
		return UserRole{}, fmt.Errorf("rbac: role %d: %w", in.RoleID, err)
	}
	if !role.IsActive {
		return UserRole{}, fmt.Errorf("rbac: role %q is inactive: %w", role.Name, ErrConstraint)
	}
	if in.AssignedBy != 0 {
		ok, err := s.CanEscalatePrivilege(ctx, in.AssignedBy, in.RoleID)
		if err != nil {
			return UserRole{}, err
		}
		if !ok {
			return UserRole{}, fmt.Errorf("rbac: assigner %d cannot grant role %q: %w", in.AssignedBy, role.Name, ErrConstraint)
		}
	}
	if in.IsPrimary {
		if err := s.demotePrimary(ctx, in.UserID, in.RoleID); err != nil {
			return UserRole{}, err
		}
	}
	assignment, err := s.roles.AssignRoleToUser(ctx, UserRole{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		RoleID:     in.RoleID,
		IsPrimary:  in.IsPrimary,
		IsActive:   true,
		ExpiresAt:  in.ExpiresAt,
		AssignedBy: in.AssignedBy,
		AssignedAt: s.now(),
		Comment:    in.Comment,
	})
	if err != nil {
		return UserRole{}, fmt.Errorf("rbac: assign role %d to user %d: %w", in.RoleID, in.UserID, err)
	}
	s.invalidator.ClearCache(in.UserID)
	return assignment, nil
}

// RemoveRole detaches a role from a user.
func (s *AdminService) RemoveRole(ctx context.Context, userID, roleID, removedBy int64, comment string) error {
	if err := s.roles.RemoveRoleFromUser(ctx, userID, roleID); err != nil {
		return fmt.Errorf("rbac: remove role %d from user %d: %w", roleID, userID, err)
	}
	s.invalidator.ClearCache(userID)
	return nil
}

// UpdateAssignment changes an assignment's active flag, primary flag or
// expiry. Promoting to primary demotes any other primary assignment.
func (s *AdminService) UpdateAssignment(ctx context.Context, in UpdateAssignmentInput) (UserRole, error) {
	assignment, err := s.roles.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return UserRole{}, fmt.Errorf("rbac: assignment %s: %w", in.AssignmentID, err)
	}
	if in.IsPrimary && !assignment.IsPrimary {
		if err := s.demotePrimary(ctx, assignment.UserID, assignment.RoleID); err != nil {
			return UserRole{}, err
		}
	}
	assignment.IsActive = in.IsActive
	assignment.IsPrimary = in.IsPrimary
	assignment.ExpiresAt = in.ExpiresAt
	if in.Comment != "" {
		assignment.Comment = in.Comment
	}
	updated, err := s.roles.UpdateAssignment(ctx, assignment)
	if err != nil {
		return UserRole{}, fmt.Errorf("rbac: update assignment %s: %w", in.AssignmentID, err)
	}
	s.invalidator.ClearCache(assignment.UserID)
	return updated, nil
}

// SetPrimaryRole flags one of the user's assignments as primary, demoting
// whichever held the flag before.
func (s *AdminService) SetPrimaryRole(ctx context.Context, userID, roleID, updatedBy int64) error {
	assignments, err := s.roles.UserAssignments(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("rbac: list assignments for user %d: %w", userID, err)
	}
	var target *UserRole
	for i := range assignments {
		if assignments[i].RoleID == roleID {
			target = &assignments[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("rbac: user %d has no assignment for role %d: %w", userID, roleID, ErrNotFound)
	}
	if err := s.demotePrimary(ctx, userID, roleID); err != nil {
		return err
	}
	if !target.IsPrimary {
		target.IsPrimary = true
		if _, err := s.roles.UpdateAssignment(ctx, *target); err != nil {
			return fmt.Errorf("rbac: promote assignment %s: %w", target.ID, err)
		}
	}
	s.invalidator.ClearCache(userID)
	return nil
}

// UpdateUserRoles replaces a user's assignments with the desired set: extra
// roles are removed, missing ones assigned, survivors updated in place. At
// most one desired assignment may be primary; promoting a survivor demotes
// the previous primary, and reactivating a dormant assignment passes the
// same escalation guard as a fresh grant.
func (s *AdminService) UpdateUserRoles(ctx context.Context, userID int64, desired []AssignmentSpec, updatedBy int64) error {
	primaries := 0
	for _, spec := range desired {
		if spec.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return fmt.Errorf("rbac: user %d: %d primary assignments requested, at most one allowed: %w", userID, primaries, ErrConstraint)
	}
	current, err := s.roles.UserAssignments(ctx, userID, true)
	if err != nil {
		return fmt.Errorf("rbac: list assignments for user %d: %w", userID, err)
	}
	existing := make(map[int64]UserRole, len(current))
	for _, assignment := range current {
		existing[assignment.RoleID] = assignment
	}
	keep := make(map[int64]struct{}, len(desired))
	for _, spec := range desired {
		keep[spec.RoleID] = struct{}{}
		if assignment, ok := existing[spec.RoleID]; ok {
			if !assignment.IsActive && updatedBy != 0 {
				ok, err := s.CanEscalatePrivilege(ctx, updatedBy, spec.RoleID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("rbac: assigner %d cannot grant role %d: %w", updatedBy, spec.RoleID, ErrConstraint)
				}
			}
			if spec.IsPrimary && !assignment.IsPrimary {
				if err := s.demotePrimary(ctx, userID, spec.RoleID); err != nil {
					return err
				}
			}
			assignment.IsActive = true
			assignment.IsPrimary = spec.IsPrimary
			assignment.ExpiresAt = spec.ExpiresAt
			if spec.Comment != "" {
				assignment.Comment = spec.Comment
			}
			if _, err := s.roles.UpdateAssignment(ctx, assignment); err != nil {
				return fmt.Errorf("rbac: update assignment %s: %w", assignment.ID, err)
			}
			continue
		}
		if _, err := s.AssignRole(ctx, AssignRoleInput{
			UserID:     userID,
			RoleID:     spec.RoleID,
			AssignedBy: updatedBy,
			IsPrimary:  spec.IsPrimary,
			ExpiresAt:  spec.ExpiresAt,
			Comment:    spec.Comment,
		}); err != nil {
			return err
		}
	}
	for roleID := range existing {
		if _, ok := keep[roleID]; ok {
			continue
		}
		if err := s.roles.RemoveRoleFromUser(ctx, userID, roleID); err != nil {
			return fmt.Errorf("rbac: remove role %d from user %d: %w", roleID, userID, err)
		}
	}
	s.invalidator.ClearCache(userID)
	return nil
}

// IsRoleNameDuplicate reports a case-insensitive name collision with any
// role other than excludeID.
func (s *AdminService) IsRoleNameDuplicate(ctx context.Context, name string, excludeID int64) (bool, error) {
	roles, err := s.roles.ListRoles(ctx, true)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.ID != excludeID && strings.EqualFold(role.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// CanDeleteRole reports whether the role may be deleted and, when not, the
// human-readable reason.
func (s *AdminService) CanDeleteRole(ctx context.Context, roleID int64) (bool, string, error) {
	role, err := s.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return false, "", fmt.Errorf("rbac: role %d: %w", roleID, err)
	}
	if role.IsSystem() {
		return false, "system roles cannot be deleted", nil
	}
	count, err := s.roles.CountValidAssignments(ctx, roleID)
	if err != nil {
		return false, "", fmt.Errorf("rbac: count assignments for role %d: %w", roleID, err)
	}
	if count > 0 {
		return false, fmt.Sprintf("role has %d active assignments", count), nil
	}
	return true, "", nil
}

// CanEscalatePrivilege reports whether the requester may grant the role:
// the requester must hold an administrative tier and outrank the role's
// priority.
func (s *AdminService) CanEscalatePrivilege(ctx context.Context, requesterID, roleID int64) (bool, error) {
	role, err := s.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return false, fmt.Errorf("rbac: role %d: %w", roleID, err)
	}
	assignments, err := s.roles.UserAssignments(ctx, requesterID, false)
	if err != nil {
		return false, fmt.Errorf("rbac: list assignments for user %d: %w", requesterID, err)
	}
	now := s.now()
	admin := false
	highest := 0
	for _, assignment := range assignments {
		if !assignment.ValidAt(now) {
			continue
		}
		held, err := s.roles.GetRoleByID(ctx, assignment.RoleID)
		if err != nil {
			return false, fmt.Errorf("rbac: role %d: %w", assignment.RoleID, err)
		}
		if !held.IsActive {
			continue
		}
		if held.SystemRoleID == SystemRoleSuperAdmin || held.SystemRoleID == SystemRoleAdministrator {
			admin = true
		}
		if held.Priority > highest {
			highest = held.Priority
		}
	}
	return admin && highest > role.Priority, nil
}

// InitializeSystemRoles re-triggers the idempotent bootstrap seeding.
func (s *AdminService) InitializeSystemRoles(ctx context.Context, actor int64) error {
	if s.bootstrap == nil {
		return fmt.Errorf("rbac: bootstrapper not configured")
	}
	if err := s.bootstrap.InitializeSystemRoles(ctx, actor); err != nil {
		return err
	}
	s.invalidator.ClearAllCaches()
	return nil
}

// AssignDefaultUserRole gives the user the baseline tier as primary.
func (s *AdminService) AssignDefaultUserRole(ctx context.Context, userID, assignedBy int64) error {
	if s.bootstrap == nil {
		return fmt.Errorf("rbac: bootstrapper not configured")
	}
	if err := s.bootstrap.AssignDefaultUserRole(ctx, userID, assignedBy); err != nil {
		return err
	}
	s.invalidator.ClearCache(userID)
	return nil
}

// CreateAdminUser promotes the user to the top administrative tier.
func (s *AdminService) CreateAdminUser(ctx context.Context, userID, createdBy int64) error {
	if s.bootstrap == nil {
		return fmt.Errorf("rbac: bootstrapper not configured")
	}
	if err := s.bootstrap.CreateAdminUser(ctx, userID, createdBy); err != nil {
		return err
	}
	s.invalidator.ClearCache(userID)
	return nil
}

// demotePrimary clears the primary flag on every assignment of the user
// except the one pointing at keepRoleID.
func (s *AdminService) demotePrimary(ctx context.Context, userID, keepRoleID int64) error {
	assignments, err := s.roles.UserAssignments(ctx, userID, true)
	if err != nil {
		return fmt.Errorf("rbac: list assignments for user %d: %w", userID, err)
	}
	for _, assignment := range assignments {
		if !assignment.IsPrimary || assignment.RoleID == keepRoleID {
			continue
		}
		assignment.IsPrimary = false
		if _, err := s.roles.UpdateAssignment(ctx, assignment); err != nil {
			return fmt.Errorf("rbac: demote assignment %s: %w", assignment.ID, err)
		}
		if s.logger != nil {
			s.logger.Info("demoted primary assignment",
				slog.Int64("user_id", userID),
				slog.Int64("role_id", assignment.RoleID))
		}
	}
	return nil
}
