package rbac_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-suite/meridian/internal/rbac"
	"github.com/meridian-suite/meridian/internal/rbac/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture bundles a seeded in-memory store with the engine and admin service
// wired the way main does it.
type fixture struct {
	store  *memstore.Store
	engine *rbac.Engine
	admin  *rbac.AdminService
	boot   *rbac.Bootstrapper
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := discardLogger()
	store := memstore.New()
	boot := rbac.NewBootstrapper(logger, store, store, nil, "")
	require.NoError(t, boot.InitializeSystemRoles(context.Background(), 0))
	engine := rbac.NewEngine(logger, store, store, rbac.NewCache(), nil)
	admin := rbac.NewAdminService(logger, store, store, engine, boot)
	return fixture{store: store, engine: engine, admin: admin, boot: boot}
}

func (f fixture) systemRole(t *testing.T, id rbac.SystemRoleID) rbac.Role {
	t.Helper()
	role, err := f.store.GetRoleBySystemRoleID(context.Background(), id)
	require.NoError(t, err)
	return role
}

func (f fixture) permission(t *testing.T, name string) rbac.Permission {
	t.Helper()
	perm, err := f.store.GetPermissionByName(context.Background(), name)
	require.NoError(t, err)
	return perm
}

func (f fixture) assign(t *testing.T, userID, roleID int64, primary bool, expiresAt *time.Time) rbac.UserRole {
	t.Helper()
	assignment, err := f.admin.AssignRole(context.Background(), rbac.AssignRoleInput{
		UserID:    userID,
		RoleID:    roleID,
		IsPrimary: primary,
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return assignment
}

func timePtr(ts time.Time) *time.Time { return &ts }
