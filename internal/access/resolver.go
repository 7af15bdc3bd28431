package access

import (
	"context"
	"errors"
)

// Resolver answers visibility and action questions for a user against the
// relationship records. All methods are read-only and side-effect-free.
// "No access" is reported as false, never as an error, and a missing record
// during a lookup is treated identically to no access (fail-closed).
type Resolver struct {
	store RelationStore
}

func NewResolver(store RelationStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("access: relation store is required")
	}
	return &Resolver{store: store}, nil
}

// roleVisibility pairs the yes/no predicate with its enumerable form for one
// role. Both must agree: UserBuildings yields exactly the buildings for which
// CanViewBuilding answers true.
type roleVisibility struct {
	view func(r *Resolver, ctx context.Context, user User, buildingID string) (bool, error)
	list func(r *Resolver, ctx context.Context, user User) ([]*Building, error)
}

// visibility is the per-role dispatch table. A new role is a compile-time
// checked entry here; a role without an entry sees nothing.
var visibility = map[Role]roleVisibility{
	RoleAccountOwner: {
		view: func(r *Resolver, ctx context.Context, u User, buildingID string) (bool, error) {
			b, err := r.store.FindBuilding(ctx, buildingID)
			if err != nil {
				return false, denyNotFound(err)
			}
			return u.OrganizationID != "" && b.OrganizationID == u.OrganizationID, nil
		},
		list: func(r *Resolver, ctx context.Context, u User) ([]*Building, error) {
			if u.OrganizationID == "" {
				return nil, nil
			}
			return r.store.ListBuildingsByOrg(ctx, u.OrganizationID)
		},
	},
	RolePortfolioManager: {view: grantView, list: grantList},
	RolePropertyManager:  {view: grantView, list: grantList},
	RoleBuildingOwner: {
		view: func(r *Resolver, ctx context.Context, u User, buildingID string) (bool, error) {
			b, err := r.store.FindBuilding(ctx, buildingID)
			if err != nil {
				return false, denyNotFound(err)
			}
			return b.OwnerID != "" && b.OwnerID == u.ID, nil
		},
		list: func(r *Resolver, ctx context.Context, u User) ([]*Building, error) {
			return r.store.ListBuildingsByOwner(ctx, u.ID)
		},
	},
	RoleTenant: {
		view: func(r *Resolver, ctx context.Context, u User, buildingID string) (bool, error) {
			t, err := r.store.FindTenantByUser(ctx, u.ID)
			if err != nil {
				return false, denyNotFound(err)
			}
			return t.BuildingID == buildingID, nil
		},
		list: func(r *Resolver, ctx context.Context, u User) ([]*Building, error) {
			t, err := r.store.FindTenantByUser(ctx, u.ID)
			if err != nil {
				return nil, denyNotFound(err)
			}
			b, err := r.store.FindBuilding(ctx, t.BuildingID)
			if err != nil {
				return nil, denyNotFound(err)
			}
			return []*Building{b}, nil
		},
	},
	RoleVendor: {
		view: func(r *Resolver, ctx context.Context, u User, buildingID string) (bool, error) {
			v, err := r.store.FindVendorByUser(ctx, u.ID)
			if err != nil {
				return false, denyNotFound(err)
			}
			return r.store.HasApprovedAuthorization(ctx, v.ID, buildingID)
		},
		list: func(r *Resolver, ctx context.Context, u User) ([]*Building, error) {
			v, err := r.store.FindVendorByUser(ctx, u.ID)
			if err != nil {
				return nil, denyNotFound(err)
			}
			return r.store.ListAuthorizedBuildings(ctx, v.ID)
		},
	},
	RoleGuard: {
		view: func(r *Resolver, ctx context.Context, u User, buildingID string) (bool, error) {
			g, err := r.store.FindGuardByUser(ctx, u.ID)
			if err != nil {
				return false, denyNotFound(err)
			}
			return r.store.HasGuardAssignment(ctx, g.ID, buildingID)
		},
		list: func(r *Resolver, ctx context.Context, u User) ([]*Building, error) {
			g, err := r.store.FindGuardByUser(ctx, u.ID)
			if err != nil {
				return nil, denyNotFound(err)
			}
			return r.store.ListAssignedBuildings(ctx, g.ID)
		},
	},
}

func grantView(r *Resolver, ctx context.Context, u User, buildingID string) (bool, error) {
	return r.store.HasGrant(ctx, u.ID, buildingID)
}

func grantList(r *Resolver, ctx context.Context, u User) ([]*Building, error) {
	return r.store.ListGrantedBuildings(ctx, u.ID)
}

// CanViewBuilding reports whether the user may see the building, dispatched
// on role per the visibility table.
func (r *Resolver) CanViewBuilding(ctx context.Context, user User, buildingID string) (bool, error) {
	vis, ok := visibility[user.Role]
	if !ok || buildingID == "" {
		return false, nil
	}
	return vis.view(r, ctx, user, buildingID)
}

// UserBuildings enumerates every building the user may see. It is the
// enumerable form of CanViewBuilding.
func (r *Resolver) UserBuildings(ctx context.Context, user User) ([]*Building, error) {
	vis, ok := visibility[user.Role]
	if !ok {
		return nil, nil
	}
	return vis.list(r, ctx, user)
}

// CanAccessCOI reports whether the user may access the certificate.
// Management roles and building owners need building visibility; vendors and
// tenants only reach their own certificates; guards get status-only access
// through building visibility (detail suppression is a transport concern).
func (r *Resolver) CanAccessCOI(ctx context.Context, user User, certificateID string) (bool, error) {
	ref, err := r.store.FindCertificateRef(ctx, certificateID)
	if err != nil {
		return false, denyNotFound(err)
	}
	switch user.Role {
	case RoleAccountOwner, RolePortfolioManager, RolePropertyManager, RoleBuildingOwner, RoleGuard:
		return r.CanViewBuilding(ctx, user, ref.BuildingID)
	case RoleVendor:
		return ref.VendorUserID != "" && ref.VendorUserID == user.ID, nil
	case RoleTenant:
		return ref.TenantUserID != "" && ref.TenantUserID == user.ID, nil
	}
	return false, nil
}

// CanCheckAccess reports whether the user may run an on-demand access check
// at the building: guards via assignment, management roles via visibility.
func (r *Resolver) CanCheckAccess(ctx context.Context, user User, buildingID string) (bool, error) {
	switch user.Role {
	case RoleGuard, RoleAccountOwner, RolePortfolioManager, RolePropertyManager:
		return r.CanViewBuilding(ctx, user, buildingID)
	}
	return false, nil
}

// CanManageVendorInBuilding combines the vendor-approval capability with
// visibility of the specific building.
func (r *Resolver) CanManageVendorInBuilding(ctx context.Context, user User, buildingID string) (bool, error) {
	if !Can(user.Role, ActionApproveVendors) {
		return false, nil
	}
	return r.CanViewBuilding(ctx, user, buildingID)
}

// OrgEntity names the entity kinds ValidateOrganizationAccess understands.
type OrgEntity string

const (
	OrgEntityBuilding OrgEntity = "building"
	OrgEntityVendor   OrgEntity = "vendor"
	OrgEntityTenant   OrgEntity = "tenant"
)

// ValidateOrganizationAccess reports whether the entity belongs to the
// user's organization. Vendors are cross-organization and always pass.
func (r *Resolver) ValidateOrganizationAccess(ctx context.Context, user User, entity OrgEntity, entityID string) (bool, error) {
	switch entity {
	case OrgEntityBuilding:
		b, err := r.store.FindBuilding(ctx, entityID)
		if err != nil {
			return false, denyNotFound(err)
		}
		return b.OrganizationID == user.OrganizationID, nil
	case OrgEntityVendor:
		return true, nil
	case OrgEntityTenant:
		t, err := r.store.FindTenant(ctx, entityID)
		if err != nil {
			return false, denyNotFound(err)
		}
		b, err := r.store.FindBuilding(ctx, t.BuildingID)
		if err != nil {
			return false, denyNotFound(err)
		}
		return b.OrganizationID == user.OrganizationID, nil
	}
	return false, nil
}

// ResolvePermission is the single entry point the transport layer consults
// before a mutating call: the capability table first, then the building
// relation check when the action is building-scoped and a resource is named.
func (r *Resolver) ResolvePermission(ctx context.Context, user User, action Action, resourceRef string) (bool, error) {
	if !Can(user.Role, action) {
		return false, nil
	}
	if resourceRef == "" || !buildingScoped[action] {
		return true, nil
	}
	return r.CanViewBuilding(ctx, user, resourceRef)
}

// denyNotFound maps a missing record to a plain denial and propagates every
// other store error.
func denyNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
