package rbac

import "sync"

// Cache holds per-actor resolved roles and permissions. One mutex shields
// both maps so concurrent population and invalidation never produce torn
// reads. There is no TTL: invalidation is manual and performed by the
// administration service after every mutation.
type Cache struct {
	mu          sync.Mutex
	roles       map[int64][]Role
	permissions map[int64][]Permission
}

// NewCache constructs an empty cache. Construct one per process and share it
// by reference; tests instantiate isolated caches.
func NewCache() *Cache {
	return &Cache{
		roles:       make(map[int64][]Role),
		permissions: make(map[int64][]Permission),
	}
}

// Roles returns the cached roles for a user, if present.
func (c *Cache) Roles(userID int64) ([]Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roles, ok := c.roles[userID]
	if !ok {
		return nil, false
	}
	out := make([]Role, len(roles))
	copy(out, roles)
	return out, true
}

// Permissions returns the cached permissions for a user, if present.
func (c *Cache) Permissions(userID int64) ([]Permission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	perms, ok := c.permissions[userID]
	if !ok {
		return nil, false
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out, true
}

// StoreRoles caches resolved roles for a user.
func (c *Cache) StoreRoles(userID int64, roles []Role) {
	stored := make([]Role, len(roles))
	copy(stored, roles)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[userID] = stored
}

// StorePermissions caches resolved permissions for a user.
func (c *Cache) StorePermissions(userID int64, perms []Permission) {
	stored := make([]Permission, len(perms))
	copy(stored, perms)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permissions[userID] = stored
}

// Clear drops both entries for one user.
func (c *Cache) Clear(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, userID)
	delete(c.permissions, userID)
}

// ClearAll drops every cached entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles = make(map[int64][]Role)
	c.permissions = make(map[int64][]Permission)
}
