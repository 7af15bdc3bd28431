package access

import "context"

// RelationStore provides the relationship lookups the resolver depends on.
// Implementations return ErrNotFound for absent records; the resolver
// converts that to a denial, never an error.
type RelationStore interface {
	FindUser(ctx context.Context, id string) (*User, error)

	FindBuilding(ctx context.Context, id string) (*Building, error)
	ListBuildingsByOrg(ctx context.Context, orgID string) ([]*Building, error)
	ListBuildingsByOwner(ctx context.Context, ownerID string) ([]*Building, error)

	// Grants back PORTFOLIO_MANAGER / PROPERTY_MANAGER visibility.
	HasGrant(ctx context.Context, userID, buildingID string) (bool, error)
	ListGrantedBuildings(ctx context.Context, userID string) ([]*Building, error)

	FindVendorByUser(ctx context.Context, userID string) (*Vendor, error)
	FindTenantByUser(ctx context.Context, userID string) (*Tenant, error)
	FindTenant(ctx context.Context, id string) (*Tenant, error)
	FindGuardByUser(ctx context.Context, userID string) (*Guard, error)

	HasApprovedAuthorization(ctx context.Context, vendorID, buildingID string) (bool, error)
	ListAuthorizedBuildings(ctx context.Context, vendorID string) ([]*Building, error)
	HasGuardAssignment(ctx context.Context, guardID, buildingID string) (bool, error)
	ListAssignedBuildings(ctx context.Context, guardID string) ([]*Building, error)

	FindCertificateRef(ctx context.Context, certificateID string) (*CertificateRef, error)
}
