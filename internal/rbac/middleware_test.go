package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridian-suite/meridian/internal/rbac"
	"github.com/meridian-suite/meridian/internal/shared"
)

func TestMiddlewareRequireAny(t *testing.T) {
	f := newFixture(t)
	employee := f.systemRole(t, rbac.SystemRoleEmployee)
	f.assign(t, 1, employee.ID, true, nil)

	mw := rbac.Middleware{Engine: f.engine, Logger: discardLogger()}
	handler := mw.RequireAny("Reports.View", "Reports.Manage")(okHandler())

	// Anonymous requests are denied outright.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An actor holding one of the permissions passes.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(t, 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	// An actor without any of them is denied.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(t, 2))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareRequireAll(t *testing.T) {
	f := newFixture(t)
	employee := f.systemRole(t, rbac.SystemRoleEmployee)
	manager := f.systemRole(t, rbac.SystemRoleManager)
	f.assign(t, 1, employee.ID, true, nil)
	f.assign(t, 2, manager.ID, true, nil)

	mw := rbac.Middleware{Engine: f.engine, Logger: discardLogger()}
	handler := mw.RequireAll("Reports.View", "Reports.Export")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(t, 1))
	assert.Equal(t, http.StatusForbidden, rec.Code, "employee lacks Reports.Export")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(t, 2))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRequireAccess(t *testing.T) {
	f := newFixture(t)
	superAdmin := f.systemRole(t, rbac.SystemRoleSuperAdmin)
	employee := f.systemRole(t, rbac.SystemRoleEmployee)
	f.assign(t, 1, superAdmin.ID, true, nil)
	f.assign(t, 2, employee.ID, true, nil)

	mw := rbac.Middleware{Engine: f.engine, Logger: discardLogger()}
	handler := mw.RequireAccess(rbac.ModuleEmployees, rbac.ActionDelete)(okHandler())

	// The Manage grant subsumes Delete.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(t, 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(t, 2))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(t *testing.T, userID int64) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(shared.ContextWithActor(req.Context(), userID))
}
