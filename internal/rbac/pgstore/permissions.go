package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-suite/meridian/internal/rbac"
)

// PermissionStore implements rbac.PermissionStore on PostgreSQL.
type PermissionStore struct {
	pool *pgxpool.Pool
}

// NewPermissionStore constructs a permission store.
func NewPermissionStore(pool *pgxpool.Pool) *PermissionStore {
	return &PermissionStore{pool: pool}
}

const permissionColumns = `id, name, module, action, resource, description, is_system, is_active`

func scanPermission(row pgx.Row) (rbac.Permission, error) {
	var (
		perm   rbac.Permission
		action string
	)
	if err := row.Scan(&perm.ID, &perm.Name, &perm.Module, &action, &perm.Resource, &perm.Description, &perm.IsSystemPermission, &perm.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Permission{}, rbac.ErrNotFound
		}
		return rbac.Permission{}, err
	}
	perm.Action = rbac.Action(action)
	return perm, nil
}

// GetPermissionByID fetches a permission by ID.
func (s *PermissionStore) GetPermissionByID(ctx context.Context, id int64) (rbac.Permission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM rbac_permissions WHERE id = $1`, id)
	return scanPermission(row)
}

// GetPermissionByName fetches a permission by case-insensitive name.
func (s *PermissionStore) GetPermissionByName(ctx context.Context, name string) (rbac.Permission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM rbac_permissions WHERE LOWER(name) = LOWER($1)`, name)
	return scanPermission(row)
}

// GetPermissionsByModule lists permissions of one module.
func (s *PermissionStore) GetPermissionsByModule(ctx context.Context, module string) ([]rbac.Permission, error) {
	return s.queryPermissions(ctx, `SELECT `+permissionColumns+` FROM rbac_permissions WHERE LOWER(module) = LOWER($1) ORDER BY name`, module)
}

// GetPermissionsByAction lists permissions of one action.
func (s *PermissionStore) GetPermissionsByAction(ctx context.Context, action rbac.Action) ([]rbac.Permission, error) {
	return s.queryPermissions(ctx, `SELECT `+permissionColumns+` FROM rbac_permissions WHERE action = $1 ORDER BY name`, string(action))
}

// ListPermissions returns permissions ordered by name.
func (s *PermissionStore) ListPermissions(ctx context.Context, includeInactive bool) ([]rbac.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM rbac_permissions`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	return s.queryPermissions(ctx, query)
}

// CreatePermission inserts a permission. A name collision maps to
// rbac.ErrDuplicate.
func (s *PermissionStore) CreatePermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rbac_permissions (name, module, action, resource, description, is_system, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+permissionColumns,
		perm.Name, perm.Module, string(perm.Action), perm.Resource, perm.Description, perm.IsSystemPermission, perm.IsActive)
	created, err := scanPermission(row)
	if isUniqueViolation(err) {
		return rbac.Permission{}, fmt.Errorf("permission %q: %w", perm.Name, rbac.ErrDuplicate)
	}
	return created, err
}

// UpdatePermission updates a permission's mutable fields.
func (s *PermissionStore) UpdatePermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE rbac_permissions
		SET name = $2, module = $3, action = $4, resource = $5, description = $6, is_active = $7
		WHERE id = $1
		RETURNING `+permissionColumns,
		perm.ID, perm.Name, perm.Module, string(perm.Action), perm.Resource, perm.Description, perm.IsActive)
	updated, err := scanPermission(row)
	if isUniqueViolation(err) {
		return rbac.Permission{}, fmt.Errorf("permission %q: %w", perm.Name, rbac.ErrDuplicate)
	}
	return updated, err
}

// DeletePermission removes a permission.
func (s *PermissionStore) DeletePermission(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rbac_permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// GrantToRole upserts the (role, permission) grant.
func (s *PermissionStore) GrantToRole(ctx context.Context, grant rbac.RolePermission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rbac_role_permissions (role_id, permission_id, is_granted, granted_by, granted_at, comment)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (role_id, permission_id) DO UPDATE SET
			is_granted = EXCLUDED.is_granted,
			granted_by = EXCLUDED.granted_by,
			granted_at = NOW(),
			comment = EXCLUDED.comment`,
		grant.RoleID, grant.PermissionID, grant.IsGranted, grant.GrantedBy, grant.Comment)
	return err
}

// RevokeFromRole records an explicit revocation, keeping the row.
func (s *PermissionStore) RevokeFromRole(ctx context.Context, roleID, permissionID, revokedBy int64, comment string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rbac_role_permissions
		SET is_granted = FALSE, granted_by = $3, granted_at = NOW(), comment = $4
		WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID, revokedBy, comment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// RolePermissions lists a role's granted permissions; includeRevoked adds
// explicitly revoked links.
func (s *PermissionStore) RolePermissions(ctx context.Context, roleID int64, includeRevoked bool) ([]rbac.Permission, error) {
	query := `
		SELECT ` + prefixedPermissionColumns("p") + `
		FROM rbac_permissions p
		JOIN rbac_role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1`
	if !includeRevoked {
		query += ` AND rp.is_granted`
	}
	query += ` ORDER BY p.name`
	return s.queryPermissions(ctx, query, roleID)
}

// RoleGrants lists the raw grant rows of a role.
func (s *PermissionStore) RoleGrants(ctx context.Context, roleID int64) ([]rbac.RolePermission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT role_id, permission_id, is_granted, granted_by, granted_at, comment
		FROM rbac_role_permissions
		WHERE role_id = $1
		ORDER BY permission_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []rbac.RolePermission
	for rows.Next() {
		var grant rbac.RolePermission
		if err := rows.Scan(&grant.RoleID, &grant.PermissionID, &grant.IsGranted, &grant.GrantedBy, &grant.GrantedAt, &grant.Comment); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// UserPermissions returns the deduplicated union of granted permissions
// across the user's currently-valid assignments to active roles.
func (s *PermissionStore) UserPermissions(ctx context.Context, userID int64) ([]rbac.Permission, error) {
	return s.queryPermissions(ctx, `
		SELECT DISTINCT `+prefixedPermissionColumns("p")+`
		FROM rbac_permissions p
		JOIN rbac_role_permissions rp ON rp.permission_id = p.id AND rp.is_granted
		JOIN rbac_roles r ON r.id = rp.role_id AND r.is_active
		JOIN rbac_user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		  AND ur.is_active
		  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
		  AND p.is_active
		ORDER BY p.name`, userID)
}

// UserHasPermission reports whether the user holds the named permission.
func (s *PermissionStore) UserHasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM rbac_permissions p
			JOIN rbac_role_permissions rp ON rp.permission_id = p.id AND rp.is_granted
			JOIN rbac_roles r ON r.id = rp.role_id AND r.is_active
			JOIN rbac_user_roles ur ON ur.role_id = r.id
			WHERE ur.user_id = $1
			  AND LOWER(p.name) = LOWER($2)
			  AND ur.is_active
			  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
			  AND p.is_active
		)`, userID, name).Scan(&exists)
	return exists, err
}

// CountRolesGranting counts active roles with a live grant for the
// permission.
func (s *PermissionStore) CountRolesGranting(ctx context.Context, permissionID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM rbac_role_permissions rp
		JOIN rbac_roles r ON r.id = rp.role_id AND r.is_active
		WHERE rp.permission_id = $1 AND rp.is_granted`, permissionID).Scan(&count)
	return count, err
}

// GrantCountsByPermission maps each permission to the number of active roles
// granting it.
func (s *PermissionStore) GrantCountsByPermission(ctx context.Context) (map[int64]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rp.permission_id, COUNT(*)
		FROM rbac_role_permissions rp
		JOIN rbac_roles r ON r.id = rp.role_id AND r.is_active
		WHERE rp.is_granted
		GROUP BY rp.permission_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id    int64
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func (s *PermissionStore) queryPermissions(ctx context.Context, query string, args ...any) ([]rbac.Permission, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []rbac.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func prefixedPermissionColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.module, ` + alias + `.action, ` + alias + `.resource, ` + alias + `.description, ` + alias + `.is_system, ` + alias + `.is_active`
}
