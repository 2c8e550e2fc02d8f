// Package http exposes the RBAC administration surface as an internal JSON
// API. The role-management UI lives outside this service and consumes these
// endpoints.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-suite/meridian/internal/platform/httpx"
	"github.com/meridian-suite/meridian/internal/rbac"
	"github.com/meridian-suite/meridian/internal/shared"
)

// Handler serves role, permission and assignment administration.
type Handler struct {
	logger   *slog.Logger
	admin    *rbac.AdminService
	engine   *rbac.Engine
	mw       rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, admin *rbac.AdminService, engine *rbac.Engine, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		admin:    admin,
		engine:   engine,
		mw:       mw,
		validate: validator.New(),
	}
}

var (
	permRolesView   = rbac.ComposePermissionName(rbac.ModuleRoles, rbac.ActionView, "")
	permRolesManage = rbac.ComposePermissionName(rbac.ModuleRoles, rbac.ActionManage, "")
	permPermsView   = rbac.ComposePermissionName(rbac.ModulePermissions, rbac.ActionView, "")
	permUsersView   = rbac.ComposePermissionName(rbac.ModuleUsers, rbac.ActionView, "")
)

// MountRoutes registers RBAC administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(permRolesView, permRolesManage))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleID}", h.getRole)
		r.Get("/roles/{roleID}/permissions", h.rolePermissions)
		r.Get("/stats/roles", h.roleStatistics)
		r.Get("/stats/unused-roles", h.unusedRoles)
		r.Get("/stats/expiring-assignments", h.expiringAssignments)
		r.Get("/stats/permission-usage", h.permissionUsage)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(permPermsView, permRolesManage))
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(permRolesManage))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{roleID}", h.updateRole)
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Post("/roles/{roleID}/activate", h.activateRole)
		r.Post("/roles/{roleID}/deactivate", h.deactivateRole)
		r.Put("/roles/{roleID}/permissions", h.updateRolePermissions)
		r.Post("/roles/{roleID}/permissions/{permissionID}", h.addPermissionToRole)
		r.Delete("/roles/{roleID}/permissions/{permissionID}", h.removePermissionFromRole)
		r.Post("/users/{userID}/roles", h.assignRole)
		r.Put("/users/{userID}/roles", h.updateUserRoles)
		r.Delete("/users/{userID}/roles/{roleID}", h.removeRole)
		r.Put("/users/{userID}/primary-role", h.setPrimaryRole)
		r.Post("/system/initialize", h.initializeSystem)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(permUsersView, permRolesManage))
		r.Get("/users/{userID}/roles", h.userRoleAssignments)
		r.Get("/users/{userID}/context", h.securityContext)
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	IsSystem    bool   `json:"is_system"`
	IsActive    bool   `json:"is_active"`
}

func toRoleResponse(role rbac.Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Priority:    role.Priority,
		IsSystem:    role.IsSystem(),
		IsActive:    role.IsActive,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	roles, err := h.admin.ListRoles(r.Context(), includeInactive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	role, err := h.admin.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type createRoleRequest struct {
	Name          string  `json:"name" validate:"required,min=2,max=100"`
	Description   string  `json:"description" validate:"max=500"`
	Priority      int     `json:"priority" validate:"gte=0,lte=1000"`
	PermissionIDs []int64 `json:"permission_ids"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	role, err := h.admin.CreateRole(r.Context(), rbac.CreateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		Priority:      req.Priority,
		PermissionIDs: req.PermissionIDs,
		Actor:         actor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

type updateRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Priority    int    `json:"priority" validate:"gte=0,lte=1000"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	role, err := h.admin.UpdateRole(r.Context(), rbac.UpdateRoleInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		Actor:       actor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.DeleteRole(r.Context(), id, actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) activateRole(w http.ResponseWriter, r *http.Request) {
	h.setRoleActive(w, r, true)
}

func (h *Handler) deactivateRole(w http.ResponseWriter, r *http.Request) {
	h.setRoleActive(w, r, false)
}

func (h *Handler) setRoleActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if active {
		err = h.admin.ActivateRole(r.Context(), id, actor)
	} else {
		err = h.admin.DeactivateRole(r.Context(), id, actor)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	perms, err := h.admin.RolePermissions(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type updateRolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *Handler) updateRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var req updateRolePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.UpdateRolePermissions(r.Context(), id, req.PermissionIDs, actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) addPermissionToRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	permID, err := pathInt64(r, "permissionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid permission id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.AddPermissionToRole(r.Context(), roleID, permID, actor, r.URL.Query().Get("comment")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removePermissionFromRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	permID, err := pathInt64(r, "permissionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid permission id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.RemovePermissionFromRole(r.Context(), roleID, permID, actor, r.URL.Query().Get("comment")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	perms, err := h.admin.ListPermissions(r.Context(), includeInactive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type assignRoleRequest struct {
	RoleID    int64      `json:"role_id" validate:"required,gt=0"`
	IsPrimary bool       `json:"is_primary"`
	ExpiresAt *time.Time `json:"expires_at"`
	Comment   string     `json:"comment" validate:"max=500"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	assignment, err := h.admin.AssignRole(r.Context(), rbac.AssignRoleInput{
		UserID:     userID,
		RoleID:     req.RoleID,
		AssignedBy: actor,
		IsPrimary:  req.IsPrimary,
		ExpiresAt:  req.ExpiresAt,
		Comment:    req.Comment,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

type updateUserRolesRequest struct {
	Assignments []struct {
		RoleID    int64      `json:"role_id" validate:"required,gt=0"`
		IsPrimary bool       `json:"is_primary"`
		ExpiresAt *time.Time `json:"expires_at"`
		Comment   string     `json:"comment"`
	} `json:"assignments" validate:"required,dive"`
}

func (h *Handler) updateUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req updateUserRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	specs := make([]rbac.AssignmentSpec, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		specs = append(specs, rbac.AssignmentSpec{
			RoleID:    a.RoleID,
			IsPrimary: a.IsPrimary,
			ExpiresAt: a.ExpiresAt,
			Comment:   a.Comment,
		})
	}
	if err := h.admin.UpdateUserRoles(r.Context(), userID, specs, actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	roleID, err := pathInt64(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.RemoveRole(r.Context(), userID, roleID, actor, r.URL.Query().Get("comment")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type setPrimaryRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) setPrimaryRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req setPrimaryRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.SetPrimaryRole(r.Context(), userID, req.RoleID, actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) userRoleAssignments(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	assignments, err := h.admin.UserRoleAssignments(r.Context(), userID, includeInactive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignments)
}

func (h *Handler) securityContext(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	httpx.JSON(w, http.StatusOK, h.engine.SecurityContext(r.Context(), userID))
}

func (h *Handler) roleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.RoleStatistics(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) unusedRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.admin.UnusedRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) expiringAssignments(w http.ResponseWriter, r *http.Request) {
	window := time.Duration(0)
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid window duration")
			return
		}
		window = parsed
	}
	expiring, err := h.admin.ExpiringAssignments(r.Context(), window)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expiring)
}

func (h *Handler) permissionUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.admin.PermissionUsage(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usage)
}

func (h *Handler) initializeSystem(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.admin.InitializeSystemRoles(r.Context(), actor); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

// respondError maps rbac errors to RFC7807 problems.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, rbac.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, rbac.ErrConstraint):
		httpx.Problem(w, http.StatusConflict, "Constraint Violation", err.Error())
	case errors.Is(err, rbac.ErrMalformedPermissionName):
		httpx.Problem(w, http.StatusBadRequest, "Malformed Permission Name", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("rbac admin request failed", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
