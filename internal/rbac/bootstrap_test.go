package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-suite/meridian/internal/rbac"
	"github.com/meridian-suite/meridian/internal/rbac/memstore"
)

func TestInitializeSystemRolesIdempotent(t *testing.T) {
	store := memstore.New()
	boot := rbac.NewBootstrapper(discardLogger(), store, store, nil, "")
	ctx := context.Background()

	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))
	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	roles, err := store.ListRoles(ctx, true)
	require.NoError(t, err)
	assert.Len(t, roles, 5)

	perms, err := store.ListPermissions(ctx, true)
	require.NoError(t, err)
	assert.Len(t, perms, len(rbac.SystemPermissionNames()))
	for _, perm := range perms {
		assert.True(t, perm.IsSystemPermission)
		assert.True(t, perm.IsActive)
		assert.NotEmpty(t, perm.Description)
	}

	superAdmin, err := store.GetRoleBySystemRoleID(ctx, rbac.SystemRoleSuperAdmin)
	require.NoError(t, err)
	granted, err := store.RolePermissions(ctx, superAdmin.ID, false)
	require.NoError(t, err)
	assert.Len(t, granted, len(rbac.SystemPermissionNames()))
}

func TestSeedingRestoresDefaultMatrix(t *testing.T) {
	store := memstore.New()
	boot := rbac.NewBootstrapper(discardLogger(), store, store, nil, "")
	ctx := context.Background()
	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	// An operator revokes a default grant; re-seeding restores it.
	employee, err := store.GetRoleBySystemRoleID(ctx, rbac.SystemRoleEmployee)
	require.NoError(t, err)
	view, err := store.GetPermissionByName(ctx, "Reports.View")
	require.NoError(t, err)
	require.NoError(t, store.RevokeFromRole(ctx, employee.ID, view.ID, 0, ""))

	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))
	granted, err := store.RolePermissions(ctx, employee.ID, false)
	require.NoError(t, err)
	names := make([]string, 0, len(granted))
	for _, perm := range granted {
		names = append(names, perm.Name)
	}
	assert.Contains(t, names, "Reports.View")
}

func TestRenamedSystemRoleNotDuplicated(t *testing.T) {
	store := memstore.New()
	boot := rbac.NewBootstrapper(discardLogger(), store, store, nil, "")
	ctx := context.Background()
	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	manager, err := store.GetRoleBySystemRoleID(ctx, rbac.SystemRoleManager)
	require.NoError(t, err)
	manager.Name = "Team Lead"
	_, err = store.UpdateRole(ctx, manager)
	require.NoError(t, err)

	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	roles, err := store.ListRoles(ctx, true)
	require.NoError(t, err)
	assert.Len(t, roles, 5, "marker lookup prevents re-seeding a renamed tier")

	renamed, err := store.GetRoleBySystemRoleID(ctx, rbac.SystemRoleManager)
	require.NoError(t, err)
	assert.Equal(t, "Team Lead", renamed.Name)
}

func TestAssignDefaultUserRole(t *testing.T) {
	store := memstore.New()
	boot := rbac.NewBootstrapper(discardLogger(), store, store, nil, "")
	ctx := context.Background()
	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	require.NoError(t, boot.AssignDefaultUserRole(ctx, 7, 0))
	require.NoError(t, boot.AssignDefaultUserRole(ctx, 7, 0))

	assignments, err := store.UserAssignments(ctx, 7, true)
	require.NoError(t, err)
	require.Len(t, assignments, 1, "re-invocation does not duplicate")
	assert.True(t, assignments[0].IsPrimary)
	assert.True(t, assignments[0].IsActive)

	employee, err := store.GetRoleBySystemRoleID(ctx, rbac.SystemRoleEmployee)
	require.NoError(t, err)
	assert.Equal(t, employee.ID, assignments[0].RoleID)
}

type captureSeeder struct {
	userID int64
	hash   []byte
}

func (c *captureSeeder) SeedAdminCredential(ctx context.Context, userID int64, passwordHash []byte) error {
	c.userID = userID
	c.hash = passwordHash
	return nil
}

func TestCreateAdminUserSeedsCredential(t *testing.T) {
	store := memstore.New()
	seeder := &captureSeeder{}
	boot := rbac.NewBootstrapper(discardLogger(), store, store, seeder, "opensesame")
	ctx := context.Background()
	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	require.NoError(t, boot.CreateAdminUser(ctx, 1, 0))

	assert.Equal(t, int64(1), seeder.userID)
	assert.NoError(t, bcrypt.CompareHashAndPassword(seeder.hash, []byte("opensesame")))

	superAdmin, err := store.GetRoleBySystemRoleID(ctx, rbac.SystemRoleSuperAdmin)
	require.NoError(t, err)
	assignments, err := store.UserAssignments(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, superAdmin.ID, assignments[0].RoleID)
	assert.True(t, assignments[0].IsPrimary)
}

func TestCreateAdminUserWithoutSeeder(t *testing.T) {
	store := memstore.New()
	boot := rbac.NewBootstrapper(discardLogger(), store, store, nil, "")
	ctx := context.Background()
	require.NoError(t, boot.InitializeSystemRoles(ctx, 0))

	// No seeder configured: the assignment still happens.
	require.NoError(t, boot.CreateAdminUser(ctx, 2, 0))
	assignments, err := store.UserAssignments(ctx, 2, true)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}
