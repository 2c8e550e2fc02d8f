package rbac

import (
	"context"
	"fmt"
	"time"
)

// DefaultExpiryWarning is the window used when callers pass a non-positive
// one to ExpiringAssignments.
const DefaultExpiryWarning = 7 * 24 * time.Hour

// RoleStatistics summarizes the role catalog and its usage.
type RoleStatistics struct {
	TotalRoles          int
	ActiveRoles         int
	SystemRoles         int
	CustomRoles         int
	UsersPerRole        map[string]int
	AverageRolesPerUser float64
}

// ExpiringAssignment pairs an assignment nearing expiry with its role name.
type ExpiringAssignment struct {
	AssignmentID string
	UserID       int64
	RoleID       int64
	RoleName     string
	ExpiresAt    time.Time
}

// PermissionUsageEntry records how many active roles grant a permission.
type PermissionUsageEntry struct {
	PermissionID int64
	Name         string
	RoleCount    int
}

// RoleStatistics computes catalog counts, per-role user counts and the
// average number of valid assignments per assigned user.
func (s *AdminService) RoleStatistics(ctx context.Context) (RoleStatistics, error) {
	roles, err := s.roles.ListRoles(ctx, true)
	if err != nil {
		return RoleStatistics{}, fmt.Errorf("rbac: list roles: %w", err)
	}
	stats := RoleStatistics{
		TotalRoles:   len(roles),
		UsersPerRole: make(map[string]int, len(roles)),
	}
	for _, role := range roles {
		if role.IsActive {
			stats.ActiveRoles++
		}
		if role.IsSystem() {
			stats.SystemRoles++
		} else {
			stats.CustomRoles++
		}
		count, err := s.roles.CountValidAssignments(ctx, role.ID)
		if err != nil {
			return RoleStatistics{}, fmt.Errorf("rbac: count assignments for role %d: %w", role.ID, err)
		}
		stats.UsersPerRole[role.Name] = count
	}
	users, err := s.roles.CountDistinctAssignedUsers(ctx)
	if err != nil {
		return RoleStatistics{}, fmt.Errorf("rbac: count assigned users: %w", err)
	}
	if users > 0 {
		total, err := s.roles.CountValidAssignmentsTotal(ctx)
		if err != nil {
			return RoleStatistics{}, fmt.Errorf("rbac: count assignments: %w", err)
		}
		stats.AverageRolesPerUser = float64(total) / float64(users)
	}
	return stats, nil
}

// UnusedRoles lists roles with zero currently-valid assignments.
func (s *AdminService) UnusedRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.roles.ListRoles(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	var unused []Role
	for _, role := range roles {
		count, err := s.roles.CountValidAssignments(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("rbac: count assignments for role %d: %w", role.ID, err)
		}
		if count == 0 {
			unused = append(unused, role)
		}
	}
	return unused, nil
}

// ExpiringAssignments lists assignments expiring within the warning window.
func (s *AdminService) ExpiringAssignments(ctx context.Context, window time.Duration) ([]ExpiringAssignment, error) {
	if window <= 0 {
		window = DefaultExpiryWarning
	}
	assignments, err := s.roles.AssignmentsExpiringWithin(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("rbac: list expiring assignments: %w", err)
	}
	expiring := make([]ExpiringAssignment, 0, len(assignments))
	for _, assignment := range assignments {
		if assignment.ExpiresAt == nil {
			continue
		}
		entry := ExpiringAssignment{
			AssignmentID: assignment.ID,
			UserID:       assignment.UserID,
			RoleID:       assignment.RoleID,
			ExpiresAt:    *assignment.ExpiresAt,
		}
		if role, err := s.roles.GetRoleByID(ctx, assignment.RoleID); err == nil {
			entry.RoleName = role.Name
		}
		expiring = append(expiring, entry)
	}
	return expiring, nil
}

// PermissionUsage reports how many active roles grant each permission.
func (s *AdminService) PermissionUsage(ctx context.Context) ([]PermissionUsageEntry, error) {
	counts, err := s.permissions.GrantCountsByPermission(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: grant counts: %w", err)
	}
	perms, err := s.permissions.ListPermissions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	entries := make([]PermissionUsageEntry, 0, len(perms))
	for _, perm := range perms {
		entries = append(entries, PermissionUsageEntry{
			PermissionID: perm.ID,
			Name:         perm.Name,
			RoleCount:    counts[perm.ID],
		})
	}
	return entries, nil
}
