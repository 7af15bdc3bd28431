package access

// Role is the closed set of user roles. Roles are immutable post-creation;
// adding one is a table edit in this file, not a scattered set of if chains.
type Role string

const (
	RoleAccountOwner     Role = "ACCOUNT_OWNER"
	RolePortfolioManager Role = "PORTFOLIO_MANAGER"
	RolePropertyManager  Role = "PROPERTY_MANAGER"
	RoleBuildingOwner    Role = "BUILDING_OWNER"
	RoleTenant           Role = "TENANT"
	RoleVendor           Role = "VENDOR"
	RoleGuard            Role = "GUARD"
)

// Roles lists every valid role.
var Roles = []Role{
	RoleAccountOwner,
	RolePortfolioManager,
	RolePropertyManager,
	RoleBuildingOwner,
	RoleTenant,
	RoleVendor,
	RoleGuard,
}

// scopeLevels ranks roles for managerial-hierarchy checks only. Building
// visibility is relation-based, never rank-based.
var scopeLevels = map[Role]int{
	RoleAccountOwner:     100,
	RolePortfolioManager: 80,
	RolePropertyManager:  60,
	RoleBuildingOwner:    40,
	RoleTenant:           20,
	RoleVendor:           20,
	RoleGuard:            10,
}

// Valid reports whether r is one of the seven known roles.
func (r Role) Valid() bool {
	_, ok := scopeLevels[r]
	return ok
}

// ScopeLevel returns the numeric hierarchy rank, 0 for unknown roles.
func (r Role) ScopeLevel() int {
	return scopeLevels[r]
}

// manageableRoles whitelists which roles a manager role may administer. The
// whitelist is authoritative: ranks alone are insufficient (BUILDING_OWNER
// outranks TENANT and VENDOR but manages nobody).
var manageableRoles = map[Role]map[Role]bool{
	RolePortfolioManager: {RolePropertyManager: true, RoleGuard: true},
	RolePropertyManager:  {RoleGuard: true},
}

// CanManageUser reports whether manager may administer target. Both users
// must belong to the same organization; an account owner manages everyone
// in it, all other pairs follow the whitelist.
func CanManageUser(manager, target User) bool {
	if manager.OrganizationID == "" || manager.OrganizationID != target.OrganizationID {
		return false
	}
	if manager.Role == RoleAccountOwner {
		return true
	}
	return manageableRoles[manager.Role][target.Role]
}
