package access

// Action identifies a role-gated operation. Capability checks are pure
// functions of role; relation checks (which building, whose certificate)
// happen in the Resolver.
type Action string

const (
	ActionViewBilling        Action = "billing.view"
	ActionManageSubscription Action = "billing.manage_subscription"

	ActionInviteAccountOwner     Action = "invite.account_owner"
	ActionInvitePortfolioManager Action = "invite.portfolio_manager"
	ActionInvitePropertyManager  Action = "invite.property_manager"
	ActionInviteBuildingOwner    Action = "invite.building_owner"
	ActionInviteTenant           Action = "invite.tenant"
	ActionInviteVendor           Action = "invite.vendor"
	ActionInviteGuard            Action = "invite.guard"

	ActionCreateBuilding        Action = "building.create"
	ActionEditBuilding          Action = "building.edit"
	ActionDeleteBuilding        Action = "building.delete"
	ActionAssignPropertyManager Action = "building.assign_property_manager"

	ActionApproveVendors        Action = "vendor.approve"
	ActionViewAllVendors        Action = "vendor.view_all"
	ActionConfigureRequirements Action = "requirements.configure"

	ActionManageCOIs   Action = "coi.manage"
	ActionUploadOwnCOI Action = "coi.upload_own"
	ActionViewCOI      Action = "coi.view"

	ActionViewReports Action = "reports.view"
	ActionExportData  Action = "reports.export"

	ActionCreateGuards Action = "guard.create"
	ActionScanVendorQR Action = "guard.scan_qr"

	ActionViewAuditLogs Action = "audit.view"
)

func roleSet(roles ...Role) map[Role]bool {
	set := make(map[Role]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

// capabilities maps every action to the roles allowed to perform it.
// Absence means denial; the empty set means nobody (account owners are set
// up during organization creation, never invited).
var capabilities = map[Action]map[Role]bool{
	ActionViewBilling:        roleSet(RoleAccountOwner),
	ActionManageSubscription: roleSet(RoleAccountOwner),

	ActionInviteAccountOwner:     roleSet(),
	ActionInvitePortfolioManager: roleSet(RoleAccountOwner),
	ActionInvitePropertyManager:  roleSet(RoleAccountOwner, RolePortfolioManager),
	ActionInviteBuildingOwner:    roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionInviteTenant:           roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionInviteVendor:           roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionInviteGuard:            roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),

	ActionCreateBuilding:        roleSet(RoleAccountOwner, RolePortfolioManager),
	ActionEditBuilding:          roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionDeleteBuilding:        roleSet(RoleAccountOwner),
	ActionAssignPropertyManager: roleSet(RoleAccountOwner, RolePortfolioManager),

	ActionApproveVendors:        roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionViewAllVendors:        roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager, RoleBuildingOwner),
	ActionConfigureRequirements: roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),

	ActionManageCOIs:   roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionUploadOwnCOI: roleSet(RoleVendor, RoleTenant),
	// Vendors and tenants see only their own certificates, guards see status
	// only; those constraints are enforced by Resolver.CanAccessCOI.
	ActionViewCOI: roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager,
		RoleBuildingOwner, RoleVendor, RoleTenant, RoleGuard),

	ActionViewReports: roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager, RoleBuildingOwner),
	ActionExportData:  roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager, RoleBuildingOwner),

	ActionCreateGuards: roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
	ActionScanVendorQR: roleSet(RoleGuard),

	ActionViewAuditLogs: roleSet(RoleAccountOwner, RolePortfolioManager, RolePropertyManager),
}

// buildingScoped lists actions whose grant additionally requires visibility
// of the referenced building when a resource is named.
var buildingScoped = map[Action]bool{
	ActionEditBuilding:          true,
	ActionDeleteBuilding:        true,
	ActionAssignPropertyManager: true,
	ActionApproveVendors:        true,
	ActionConfigureRequirements: true,
	ActionManageCOIs:            true,
	ActionCreateGuards:          true,
}

// Can reports whether role may perform action. Unknown actions and unknown
// roles are denied.
func Can(role Role, action Action) bool {
	allowed, ok := capabilities[action]
	if !ok {
		return false
	}
	return allowed[role]
}
