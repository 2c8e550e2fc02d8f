// Package pgstore provides PostgreSQL backed persistence for the RBAC
// engine's store contracts.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-suite/meridian/internal/rbac"
)

// RoleStore implements rbac.RoleStore on PostgreSQL.
type RoleStore struct {
	pool *pgxpool.Pool
}

// NewRoleStore constructs a role store.
func NewRoleStore(pool *pgxpool.Pool) *RoleStore {
	return &RoleStore{pool: pool}
}

const roleColumns = `id, name, description, priority, system_role_id, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (rbac.Role, error) {
	var (
		role      rbac.Role
		marker    string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Priority, &marker, &role.IsActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, rbac.ErrNotFound
		}
		return rbac.Role{}, err
	}
	role.SystemRoleID = rbac.SystemRoleID(marker)
	role.CreatedAt = createdAt.Time
	role.UpdatedAt = updatedAt.Time
	return role, nil
}

// GetRoleByID fetches a role by ID.
func (s *RoleStore) GetRoleByID(ctx context.Context, id int64) (rbac.Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE id = $1`, id)
	return scanRole(row)
}

// GetRoleByName fetches a role by case-insensitive name.
func (s *RoleStore) GetRoleByName(ctx context.Context, name string) (rbac.Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE LOWER(name) = LOWER($1)`, name)
	return scanRole(row)
}

// GetRoleBySystemRoleID fetches a seeded role by its marker.
func (s *RoleStore) GetRoleBySystemRoleID(ctx context.Context, id rbac.SystemRoleID) (rbac.Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE system_role_id = $1`, string(id))
	return scanRole(row)
}

// ListRoles returns roles ordered by priority descending then name.
func (s *RoleStore) ListRoles(ctx context.Context, includeInactive bool) ([]rbac.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM rbac_roles`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY priority DESC, name`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a role. A name collision maps to rbac.ErrDuplicate.
func (s *RoleStore) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rbac_roles (name, description, priority, system_role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+roleColumns,
		role.Name, role.Description, role.Priority, string(role.SystemRoleID), role.IsActive)
	created, err := scanRole(row)
	if isUniqueViolation(err) {
		return rbac.Role{}, fmt.Errorf("role %q: %w", role.Name, rbac.ErrDuplicate)
	}
	return created, err
}

// UpdateRole updates a role's mutable fields.
func (s *RoleStore) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE rbac_roles
		SET name = $2, description = $3, priority = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.Priority, role.IsActive)
	updated, err := scanRole(row)
	if isUniqueViolation(err) {
		return rbac.Role{}, fmt.Errorf("role %q: %w", role.Name, rbac.ErrDuplicate)
	}
	return updated, err
}

// DeleteRole removes a role and its grants and assignments.
func (s *RoleStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rbac_roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

const assignmentColumns = `id, user_id, role_id, is_primary, is_active, expires_at, assigned_by, assigned_at, comment`

func scanAssignment(row pgx.Row) (rbac.UserRole, error) {
	var (
		assignment rbac.UserRole
		expiresAt  pgtype.Timestamptz
		assignedAt pgtype.Timestamptz
	)
	if err := row.Scan(&assignment.ID, &assignment.UserID, &assignment.RoleID, &assignment.IsPrimary, &assignment.IsActive, &expiresAt, &assignment.AssignedBy, &assignedAt, &assignment.Comment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.UserRole{}, rbac.ErrNotFound
		}
		return rbac.UserRole{}, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		assignment.ExpiresAt = &t
	}
	assignment.AssignedAt = assignedAt.Time
	return assignment, nil
}

// AssignRoleToUser upserts the (user, role) assignment. An existing row
// keeps its identifier.
func (s *RoleStore) AssignRoleToUser(ctx context.Context, assignment rbac.UserRole) (rbac.UserRole, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rbac_user_roles (id, user_id, role_id, is_primary, is_active, expires_at, assigned_by, assigned_at, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8)
		ON CONFLICT (user_id, role_id) DO UPDATE SET
			is_primary = EXCLUDED.is_primary,
			is_active = EXCLUDED.is_active,
			expires_at = EXCLUDED.expires_at,
			assigned_by = EXCLUDED.assigned_by,
			assigned_at = NOW(),
			comment = EXCLUDED.comment
		RETURNING `+assignmentColumns,
		assignment.ID, assignment.UserID, assignment.RoleID, assignment.IsPrimary, assignment.IsActive,
		toPgTime(assignment.ExpiresAt), assignment.AssignedBy, assignment.Comment)
	return scanAssignment(row)
}

// GetAssignment fetches an assignment by its identifier.
func (s *RoleStore) GetAssignment(ctx context.Context, id string) (rbac.UserRole, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM rbac_user_roles WHERE id = $1`, id)
	return scanAssignment(row)
}

// UpdateAssignment updates an assignment's flags, expiry and comment.
func (s *RoleStore) UpdateAssignment(ctx context.Context, assignment rbac.UserRole) (rbac.UserRole, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE rbac_user_roles
		SET is_primary = $2, is_active = $3, expires_at = $4, comment = $5
		WHERE id = $1
		RETURNING `+assignmentColumns,
		assignment.ID, assignment.IsPrimary, assignment.IsActive, toPgTime(assignment.ExpiresAt), assignment.Comment)
	return scanAssignment(row)
}

// RemoveRoleFromUser deletes the (user, role) assignment.
func (s *RoleStore) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rbac_user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

// UserAssignments lists a user's assignments, optionally including inactive
// ones. Expiry filtering is the caller's concern.
func (s *RoleStore) UserAssignments(ctx context.Context, userID int64, includeInactive bool) ([]rbac.UserRole, error) {
	query := `SELECT ` + assignmentColumns + ` FROM rbac_user_roles WHERE user_id = $1`
	if !includeInactive {
		query += ` AND is_active`
	}
	query += ` ORDER BY assigned_at`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []rbac.UserRole
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// UserHasRole reports whether the user currently holds the named role.
func (s *RoleStore) UserHasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM rbac_user_roles ur
			JOIN rbac_roles r ON r.id = ur.role_id
			WHERE ur.user_id = $1
			  AND LOWER(r.name) = LOWER($2)
			  AND r.is_active
			  AND ur.is_active
			  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
		)`, userID, roleName).Scan(&exists)
	return exists, err
}

// CountValidAssignments counts currently-valid assignments of one role.
func (s *RoleStore) CountValidAssignments(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM rbac_user_roles
		WHERE role_id = $1
		  AND is_active
		  AND (expires_at IS NULL OR expires_at > NOW())`, roleID).Scan(&count)
	return count, err
}

// CountDistinctAssignedUsers counts users holding at least one valid
// assignment.
func (s *RoleStore) CountDistinctAssignedUsers(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT user_id)
		FROM rbac_user_roles
		WHERE is_active
		  AND (expires_at IS NULL OR expires_at > NOW())`).Scan(&count)
	return count, err
}

// CountValidAssignmentsTotal counts all currently-valid assignments.
func (s *RoleStore) CountValidAssignmentsTotal(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM rbac_user_roles
		WHERE is_active
		  AND (expires_at IS NULL OR expires_at > NOW())`).Scan(&count)
	return count, err
}

// AssignmentsExpiringWithin lists valid assignments whose expiry falls
// inside the window.
func (s *RoleStore) AssignmentsExpiringWithin(ctx context.Context, window time.Duration) ([]rbac.UserRole, error) {
	deadline := time.Now().Add(window)
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM rbac_user_roles
		WHERE is_active
		  AND expires_at IS NOT NULL
		  AND expires_at > NOW()
		  AND expires_at <= $1
		ORDER BY expires_at`, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []rbac.UserRole
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

func toPgTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
