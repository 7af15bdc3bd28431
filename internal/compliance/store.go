package compliance

import (
	"context"
	"time"
)

// CertificateStore is the persistence surface of the evaluator.
// Implementations return ErrNotFound for absent records.
type CertificateStore interface {
	FindCertificate(ctx context.Context, id string) (*Certificate, error)
	CreateCertificate(ctx context.Context, cert *Certificate) error

	// LatestApprovedVendor returns the most recently created APPROVED
	// certificate for the (vendor, building) pair; ties on creation time
	// break toward the later row.
	LatestApprovedVendor(ctx context.Context, vendorID, buildingID string) (*Certificate, error)

	// LatestApprovedTenant is the tenant form; a tenant is bound to one
	// building so the pair collapses to the tenant alone.
	LatestApprovedTenant(ctx context.Context, tenantID string) (*Certificate, error)

	// BuildingSnapshot reads the building's certificates and vendor
	// authorizations on one consistent snapshot.
	BuildingSnapshot(ctx context.Context, buildingID string) (*Snapshot, error)

	// VendorCertificates lists all of a vendor's certificates across
	// buildings, newest first.
	VendorCertificates(ctx context.Context, vendorID string) ([]*Certificate, error)

	// ReviewCertificate overwrites the review outcome of one certificate.
	// Re-review is allowed; the previous outcome is replaced.
	ReviewCertificate(ctx context.Context, id string, status Status, notes string, reviewedAt time.Time) (*Certificate, error)
}
