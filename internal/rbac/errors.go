package rbac

import "errors"

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicate indicates a name collision with an existing entity.
	ErrDuplicate = errors.New("rbac: duplicate")
	// ErrConstraint indicates a mutation blocked by a referential or
	// system-entity guard.
	ErrConstraint = errors.New("rbac: constraint violation")
	// ErrMalformedPermissionName indicates a name outside the
	// Module.Action[.Resource] convention.
	ErrMalformedPermissionName = errors.New("rbac: malformed permission name")
)
