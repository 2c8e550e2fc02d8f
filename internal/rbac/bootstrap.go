package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CredentialSeeder provisions initial credentials for the bootstrap admin
// account. It is an external collaborator; nil disables credential seeding.
type CredentialSeeder interface {
	SeedAdminCredential(ctx context.Context, userID int64, passwordHash []byte) error
}

// Bootstrapper seeds the default permission catalog, the five system roles,
// the default role-permission matrix and the initial assignments. Every
// routine is idempotent and safe to re-run.
type Bootstrapper struct {
	roles         RoleStore
	permissions   PermissionStore
	creds         CredentialSeeder
	adminPassword string
	logger        *slog.Logger
	now           func() time.Time
}

// NewBootstrapper constructs the seeding service. creds and adminPassword
// are optional; both must be set for admin credential seeding to happen.
func NewBootstrapper(logger *slog.Logger, roles RoleStore, permissions PermissionStore, creds CredentialSeeder, adminPassword string) *Bootstrapper {
	return &Bootstrapper{
		roles:         roles,
		permissions:   permissions,
		creds:         creds,
		adminPassword: adminPassword,
		logger:        logger,
		now:           time.Now,
	}
}

// InitializeSystemRoles runs the three seeding passes: catalog permissions,
// system roles, and the per-tier grant matrix.
func (b *Bootstrapper) InitializeSystemRoles(ctx context.Context, createdBy int64) error {
	if err := b.seedPermissions(ctx); err != nil {
		return err
	}
	if err := b.seedRoles(ctx); err != nil {
		return err
	}
	return b.seedMatrix(ctx, createdBy)
}

// AssignDefaultUserRole gives the user the Employee tier as an active
// primary assignment. Re-invocation updates the existing assignment.
func (b *Bootstrapper) AssignDefaultUserRole(ctx context.Context, userID, assignedBy int64) error {
	return b.assignSystemRole(ctx, SystemRoleEmployee, userID, assignedBy)
}

// CreateAdminUser gives the user the SuperAdmin tier as an active primary
// assignment, seeding initial credentials when configured.
func (b *Bootstrapper) CreateAdminUser(ctx context.Context, userID, createdBy int64) error {
	if err := b.assignSystemRole(ctx, SystemRoleSuperAdmin, userID, createdBy); err != nil {
		return err
	}
	if b.creds == nil || b.adminPassword == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(b.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("rbac: hash admin password: %w", err)
	}
	if err := b.creds.SeedAdminCredential(ctx, userID, hash); err != nil {
		return fmt.Errorf("rbac: seed admin credential: %w", err)
	}
	return nil
}

// seedPermissions creates every catalog permission that does not exist yet.
// Existing permissions are never overwritten.
func (b *Bootstrapper) seedPermissions(ctx context.Context) error {
	caser := cases.Title(language.English)
	for _, name := range SystemPermissionNames() {
		if _, err := b.permissions.GetPermissionByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("rbac: lookup permission %q: %w", name, err)
		}
		module, action, resource, err := ParsePermissionName(name)
		if err != nil {
			return err
		}
		description := caser.String(strings.ToLower(string(action))) + " " + module
		if _, err := b.permissions.CreatePermission(ctx, Permission{
			Name:               name,
			Module:             module,
			Action:             action,
			Resource:           resource,
			Description:        description,
			IsSystemPermission: true,
			IsActive:           true,
		}); err != nil {
			return fmt.Errorf("rbac: seed permission %q: %w", name, err)
		}
	}
	return nil
}

// seedRoles creates missing system roles, looked up by marker rather than
// name so a renamed system role is not duplicated.
func (b *Bootstrapper) seedRoles(ctx context.Context) error {
	now := b.now()
	for _, spec := range systemRoles() {
		if _, err := b.roles.GetRoleBySystemRoleID(ctx, spec.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("rbac: lookup system role %s: %w", spec.ID, err)
		}
		if _, err := b.roles.CreateRole(ctx, Role{
			Name:         spec.Name,
			Description:  spec.Description,
			Priority:     spec.Priority,
			SystemRoleID: spec.ID,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return fmt.Errorf("rbac: seed role %q: %w", spec.Name, err)
		}
		if b.logger != nil {
			b.logger.Info("seeded system role", slog.String("role", spec.Name))
		}
	}
	return nil
}

// seedMatrix re-grants each tier's catalog subset. Grants upsert, so the
// pass is idempotent.
func (b *Bootstrapper) seedMatrix(ctx context.Context, createdBy int64) error {
	now := b.now()
	for _, spec := range systemRoles() {
		role, err := b.roles.GetRoleBySystemRoleID(ctx, spec.ID)
		if err != nil {
			return fmt.Errorf("rbac: lookup system role %s: %w", spec.ID, err)
		}
		for _, name := range SystemRolePermissions(spec.ID) {
			perm, err := b.permissions.GetPermissionByName(ctx, name)
			if err != nil {
				return fmt.Errorf("rbac: lookup permission %q: %w", name, err)
			}
			if err := b.permissions.GrantToRole(ctx, RolePermission{
				RoleID:       role.ID,
				PermissionID: perm.ID,
				IsGranted:    true,
				GrantedBy:    createdBy,
				GrantedAt:    now,
			}); err != nil {
				return fmt.Errorf("rbac: grant %q to role %q: %w", name, role.Name, err)
			}
		}
	}
	return nil
}

func (b *Bootstrapper) assignSystemRole(ctx context.Context, id SystemRoleID, userID, assignedBy int64) error {
	role, err := b.roles.GetRoleBySystemRoleID(ctx, id)
	if err != nil {
		return fmt.Errorf("rbac: lookup system role %s: %w", id, err)
	}
	if _, err := b.roles.AssignRoleToUser(ctx, UserRole{
		ID:         uuid.NewString(),
		UserID:     userID,
		RoleID:     role.ID,
		IsPrimary:  true,
		IsActive:   true,
		AssignedBy: assignedBy,
		AssignedAt: b.now(),
	}); err != nil {
		return fmt.Errorf("rbac: assign role %q to user %d: %w", role.Name, userID, err)
	}
	return nil
}
