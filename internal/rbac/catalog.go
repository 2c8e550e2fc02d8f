package rbac

import (
	"fmt"
	"strings"
)

// Action is the closed set of operations a permission can name. The Manage
// hierarchy rule depends on this being a known, finite set.
type Action string

// Recognized actions.
const (
	ActionView    Action = "View"
	ActionCreate  Action = "Create"
	ActionUpdate  Action = "Update"
	ActionDelete  Action = "Delete"
	ActionExport  Action = "Export"
	ActionImport  Action = "Import"
	ActionManage  Action = "Manage"
	ActionExecute Action = "Execute"
)

// Actions lists every recognized action.
func Actions() []Action {
	return []Action{
		ActionView,
		ActionCreate,
		ActionUpdate,
		ActionDelete,
		ActionExport,
		ActionImport,
		ActionManage,
		ActionExecute,
	}
}

// ParseAction resolves a case-insensitive action name.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown action %q: %w", s, ErrMalformedPermissionName)
}

// Valid reports whether the action belongs to the recognized set.
func (a Action) Valid() bool {
	_, err := ParseAction(string(a))
	return err == nil
}

// Modules of the seeded permission catalog.
const (
	ModuleEmployees   = "Employees"
	ModuleDepartments = "Departments"
	ModuleUsers       = "Users"
	ModuleRoles       = "Roles"
	ModulePermissions = "Permissions"
	ModuleReports     = "Reports"
	ModuleSettings    = "Settings"
	ModuleAudit       = "Audit"
)

// ComposePermissionName builds the canonical Module.Action[.Resource] name.
func ComposePermissionName(module string, action Action, resource string) string {
	name := module + "." + string(action)
	if resource != "" {
		name += "." + resource
	}
	return name
}

// ParsePermissionName splits a permission name into module, action and the
// optional resource qualifier. Anything after the second dot is the resource
// verbatim.
func ParsePermissionName(name string) (module string, action Action, resource string, err error) {
	parts := strings.SplitN(name, ".", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("rbac: permission name %q: %w", name, ErrMalformedPermissionName)
	}
	action, err = ParseAction(parts[1])
	if err != nil {
		return "", "", "", err
	}
	module = parts[0]
	if len(parts) == 3 {
		resource = parts[2]
	}
	return module, action, resource, nil
}

// catalogEntry describes one seeded module and the actions it supports.
type catalogEntry struct {
	Module  string
	Actions []Action
}

// systemCatalog returns the fixed permission catalog seeded by bootstrap.
func systemCatalog() []catalogEntry {
	return []catalogEntry{
		{ModuleEmployees, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionExport, ActionImport, ActionManage}},
		{ModuleDepartments, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionManage}},
		{ModuleUsers, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionManage}},
		{ModuleRoles, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionManage}},
		{ModulePermissions, []Action{ActionView, ActionManage}},
		{ModuleReports, []Action{ActionView, ActionCreate, ActionExport, ActionExecute, ActionManage}},
		{ModuleSettings, []Action{ActionView, ActionUpdate, ActionManage}},
		{ModuleAudit, []Action{ActionView, ActionExport, ActionManage}},
	}
}

// SystemPermissionNames lists every permission name in the seeded catalog.
func SystemPermissionNames() []string {
	var names []string
	for _, entry := range systemCatalog() {
		for _, action := range entry.Actions {
			names = append(names, ComposePermissionName(entry.Module, action, ""))
		}
	}
	return names
}

// systemRoleSpec describes a seeded role tier.
type systemRoleSpec struct {
	ID          SystemRoleID
	Name        string
	Description string
	Priority    int
	Clearance   Clearance
}

// systemRoles returns the five seeded tiers ordered by descending authority.
func systemRoles() []systemRoleSpec {
	return []systemRoleSpec{
		{SystemRoleSuperAdmin, "SuperAdmin", "Unrestricted platform administration", 100, ClearanceCritical},
		{SystemRoleAdministrator, "Administrator", "Day-to-day administration", 80, ClearanceHigh},
		{SystemRoleManager, "Manager", "Team and reporting management", 60, ClearanceModerate},
		{SystemRoleSupervisor, "Supervisor", "Operational supervision", 40, ClearanceLow},
		{SystemRoleEmployee, "Employee", "Baseline workforce access", 20, ClearanceMinimal},
	}
}

// SystemRolePermissions returns the catalog subset granted to a system role
// tier by default. Unknown markers get nothing.
func SystemRolePermissions(id SystemRoleID) []string {
	switch id {
	case SystemRoleSuperAdmin:
		return SystemPermissionNames()
	case SystemRoleAdministrator:
		var names []string
		for _, entry := range systemCatalog() {
			for _, action := range entry.Actions {
				if entry.Module == ModuleSettings && action == ActionManage {
					continue
				}
				if entry.Module == ModuleAudit && action == ActionManage {
					continue
				}
				names = append(names, ComposePermissionName(entry.Module, action, ""))
			}
		}
		return names
	case SystemRoleManager:
		return []string{
			ComposePermissionName(ModuleEmployees, ActionView, ""),
			ComposePermissionName(ModuleEmployees, ActionCreate, ""),
			ComposePermissionName(ModuleEmployees, ActionUpdate, ""),
			ComposePermissionName(ModuleEmployees, ActionExport, ""),
			ComposePermissionName(ModuleDepartments, ActionView, ""),
			ComposePermissionName(ModuleUsers, ActionView, ""),
			ComposePermissionName(ModuleReports, ActionView, ""),
			ComposePermissionName(ModuleReports, ActionCreate, ""),
			ComposePermissionName(ModuleReports, ActionExport, ""),
			ComposePermissionName(ModuleReports, ActionExecute, ""),
		}
	case SystemRoleSupervisor:
		return []string{
			ComposePermissionName(ModuleEmployees, ActionView, ""),
			ComposePermissionName(ModuleEmployees, ActionUpdate, ""),
			ComposePermissionName(ModuleDepartments, ActionView, ""),
			ComposePermissionName(ModuleReports, ActionView, ""),
			ComposePermissionName(ModuleReports, ActionExport, ""),
		}
	case SystemRoleEmployee:
		return []string{
			ComposePermissionName(ModuleEmployees, ActionView, ""),
			ComposePermissionName(ModuleDepartments, ActionView, ""),
			ComposePermissionName(ModuleReports, ActionView, ""),
		}
	default:
		return nil
	}
}

// ClearanceForRoles derives the clearance tier from role membership: the
// highest recognized system tier present wins, defaulting to minimal.
func ClearanceForRoles(roles []Role) Clearance {
	clearance := ClearanceMinimal
	for _, role := range roles {
		for _, spec := range systemRoles() {
			if role.SystemRoleID == spec.ID && spec.Clearance > clearance {
				clearance = spec.Clearance
			}
		}
	}
	return clearance
}
