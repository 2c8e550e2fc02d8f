package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-suite/meridian/internal/rbac"
	rbachttp "github.com/meridian-suite/meridian/internal/rbac/http"
	"github.com/meridian-suite/meridian/internal/rbac/memstore"
	"github.com/meridian-suite/meridian/internal/shared"
)

const actorHeader = "X-Actor-ID"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store  *memstore.Store
	engine *rbac.Engine
	admin  *rbac.AdminService
	router chi.Router
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	logger := testLogger()
	store := memstore.New()
	boot := rbac.NewBootstrapper(logger, store, store, nil, "")
	require.NoError(t, boot.InitializeSystemRoles(context.Background(), 0))

	engine := rbac.NewEngine(logger, store, store, rbac.NewCache(), nil)
	admin := rbac.NewAdminService(logger, store, store, engine, boot)
	handler := rbachttp.NewHandler(logger, admin, engine, rbac.Middleware{Engine: engine, Logger: logger})

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(actorHeader); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				require.NoError(t, err)
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	handler.MountRoutes(router)

	env := testEnv{store: store, engine: engine, admin: admin, router: router}

	// Actor 1 is the platform admin, actor 2 a plain employee.
	superAdmin, err := store.GetRoleBySystemRoleID(context.Background(), rbac.SystemRoleSuperAdmin)
	require.NoError(t, err)
	employee, err := store.GetRoleBySystemRoleID(context.Background(), rbac.SystemRoleEmployee)
	require.NoError(t, err)
	_, err = admin.AssignRole(context.Background(), rbac.AssignRoleInput{UserID: 1, RoleID: superAdmin.ID, IsPrimary: true})
	require.NoError(t, err)
	_, err = admin.AssignRole(context.Background(), rbac.AssignRoleInput{UserID: 2, RoleID: employee.ID, IsPrimary: true})
	require.NoError(t, err)
	return env
}

func (env testEnv) do(t *testing.T, method, target string, actor int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if actor != 0 {
		req.Header.Set(actorHeader, strconv.FormatInt(actor, 10))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestListRolesAuthorization(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/roles", 0, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "anonymous requests are denied")

	rec = env.do(t, http.MethodGet, "/roles", 2, "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "employee lacks Roles.View")

	rec = env.do(t, http.MethodGet, "/roles", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
	assert.Len(t, roles, 5)
}

func TestRoleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/roles", 1, `{"name":"Auditor","description":"Read-only audit access","priority":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Auditor", created.Name)

	// Duplicate names conflict.
	rec = env.do(t, http.MethodPost, "/roles", 1, `{"name":"auditor","priority":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Validation failures are client errors.
	rec = env.do(t, http.MethodPost, "/roles", 1, `{"name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/roles", 1, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/roles/%d", created.ID), 1, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/roles/%d", created.ID), 1, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/roles/%d", created.ID), 1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSystemRoleConflicts(t *testing.T) {
	env := newTestEnv(t)
	manager, err := env.store.GetRoleBySystemRoleID(context.Background(), rbac.SystemRoleManager)
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/roles/%d", manager.ID), 1, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssignRoleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	manager, err := env.store.GetRoleBySystemRoleID(context.Background(), rbac.SystemRoleManager)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"role_id":%d,"is_primary":true}`, manager.ID)
	rec := env.do(t, http.MethodPost, "/users/9/roles", 1, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The employee actor cannot administer roles at all.
	rec = env.do(t, http.MethodPost, "/users/9/roles", 2, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/9/roles", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var assignments []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assignments))
	assert.Len(t, assignments, 1)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/users/9/roles/%d", manager.ID), 1, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/users/9/roles/%d", manager.ID), 1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRolePermissionsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role, err := env.admin.CreateRole(ctx, rbac.CreateRoleInput{Name: "Report Reader", Priority: 10})
	require.NoError(t, err)
	view, err := env.store.GetPermissionByName(ctx, "Reports.View")
	require.NoError(t, err)

	body := fmt.Sprintf(`{"permission_ids":[%d]}`, view.ID)
	rec := env.do(t, http.MethodPut, fmt.Sprintf("/roles/%d/permissions", role.ID), 1, body)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/roles/%d/permissions", role.ID), 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var perms []rbac.Permission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perms))
	require.Len(t, perms, 1)
	assert.Equal(t, "Reports.View", perms[0].Name)
}

func TestSecurityContextEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users/1/context", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sc rbac.SecurityContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sc))
	assert.True(t, sc.IsSystemAdmin)
	assert.Equal(t, int64(1), sc.UserID)
}

func TestRoleStatisticsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/stats/roles", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats rbac.RoleStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.TotalRoles)
	assert.Equal(t, 5, stats.SystemRoles)
}

func TestExpiringAssignmentsEndpointRejectsBadWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/stats/expiring-assignments?window=tomorrow", 1, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/stats/expiring-assignments?window=168h", 1, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitializeSystemEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/system/initialize", 1, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/system/initialize", 2, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
