package compliance

import (
	"context"
	"errors"
	"time"
)

// UpperBoundInclusive pins the expiration boundary rule: a certificate stays
// valid through expirationDate itself. There must be exactly one predicate
// implementing this rule (IsCompliant); tests assert the constant so a
// change here is a deliberate, visible decision.
const UpperBoundInclusive = true

// IsCompliant is the single validity predicate of the system. It is true iff
// the certificate is APPROVED and asOf falls within
// [effectiveDate, expirationDate]. A certificate with any other status never
// grants access, regardless of dates.
func IsCompliant(c Certificate, asOf time.Time) bool {
	if c.Status != StatusApproved {
		return false
	}
	if c.EffectiveDate.IsZero() || c.ExpirationDate.IsZero() {
		return false
	}
	if asOf.Before(c.EffectiveDate) {
		return false
	}
	return !asOf.After(c.ExpirationDate)
}

// Evaluator turns certificate records into access decisions and aggregates.
// All methods are read-only; absence of an eligible certificate is a valid,
// reportable outcome, never an error.
type Evaluator struct {
	store CertificateStore
}

func NewEvaluator(store CertificateStore) (*Evaluator, error) {
	if store == nil {
		return nil, errors.New("compliance: certificate store is required")
	}
	return &Evaluator{store: store}, nil
}

// decide applies IsCompliant to one selected certificate.
func decide(c *Certificate, asOf time.Time) Decision {
	d := Decision{
		CertificateID:  c.ID,
		Status:         c.Status,
		EffectiveDate:  c.EffectiveDate,
		ExpirationDate: c.ExpirationDate,
	}
	if IsCompliant(*c, asOf) {
		d.Eligible = true
		d.Reason = ReasonValid
		return d
	}
	if !c.EffectiveDate.IsZero() && asOf.Before(c.EffectiveDate) {
		d.Reason = ReasonNotYetEffective
		return d
	}
	d.Reason = ReasonExpired
	return d
}

// CheckAccess decides whether the vendor is currently apto for the building.
func (e *Evaluator) CheckAccess(ctx context.Context, vendorID, buildingID string, asOf time.Time) (Decision, error) {
	if vendorID == "" || buildingID == "" {
		return Decision{}, ErrInvalidInput
	}
	cert, err := e.store.LatestApprovedVendor(ctx, vendorID, buildingID)
	if errors.Is(err, ErrNotFound) {
		return Decision{Reason: ReasonNoCertificate}, nil
	}
	if err != nil {
		return Decision{}, err
	}
	return decide(cert, asOf), nil
}

// CheckTenantAccess is the tenant entry point of the same decision.
func (e *Evaluator) CheckTenantAccess(ctx context.Context, tenantID string, asOf time.Time) (Decision, error) {
	if tenantID == "" {
		return Decision{}, ErrInvalidInput
	}
	cert, err := e.store.LatestApprovedTenant(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return Decision{Reason: ReasonNoCertificate}, nil
	}
	if err != nil {
		return Decision{}, err
	}
	return decide(cert, asOf), nil
}

// BuildingSummary computes a building's compliance aggregate from one
// consistent snapshot.
func (e *Evaluator) BuildingSummary(ctx context.Context, buildingID string, asOf time.Time) (BuildingSummary, error) {
	if buildingID == "" {
		return BuildingSummary{}, ErrInvalidInput
	}
	snap, err := e.store.BuildingSnapshot(ctx, buildingID)
	if err != nil {
		return BuildingSummary{}, err
	}

	sum := BuildingSummary{BuildingID: buildingID, AsOf: asOf}

	// Vendors holding an APPROVED certificate at this building, split by
	// whether any of those certificates is currently valid.
	vendorsApprovedCert := make(map[string]bool)
	vendorsValidCert := make(map[string]bool)

	for _, c := range snap.Certificates {
		sum.TotalCertificates++
		switch c.Status {
		case StatusPending:
			sum.PendingCertificates++
		case StatusApproved:
			sum.ApprovedCertificates++
		case StatusRejected:
			sum.RejectedCertificates++
		}
		if IsCompliant(*c, asOf) {
			sum.ValidCertificates++
		}
		if !c.ExpirationDate.IsZero() && asOf.After(c.ExpirationDate) {
			sum.ExpiredCertificates++
		}
		if c.VendorID != "" && c.Status == StatusApproved {
			vendorsApprovedCert[c.VendorID] = true
			if IsCompliant(*c, asOf) {
				vendorsValidCert[c.VendorID] = true
			}
		}
	}

	for _, a := range snap.Authorizations {
		switch a.Status {
		case "PENDING":
			sum.PendingAuthorizations++
		case "APPROVED":
			sum.ApprovedAuthorizations++
		case "REJECTED":
			sum.RejectedAuthorizations++
		}
		if a.Status != "APPROVED" {
			continue
		}
		switch {
		case vendorsValidCert[a.VendorID]:
			sum.VendorsWithValidCertificate++
		case vendorsApprovedCert[a.VendorID]:
			sum.VendorsWithExpiredCertificate++
		default:
			sum.VendorsWithoutCertificate++
		}
	}

	return sum, nil
}

// BuildingVendors lists every vendor holding an authorization row at the
// building, flagged with whether it currently has a valid certificate. The
// flag comes from the same predicate as CheckAccess.
func (e *Evaluator) BuildingVendors(ctx context.Context, buildingID string, asOf time.Time) ([]VendorStatus, error) {
	if buildingID == "" {
		return nil, ErrInvalidInput
	}
	snap, err := e.store.BuildingSnapshot(ctx, buildingID)
	if err != nil {
		return nil, err
	}

	// Latest valid certificate per vendor; certificates arrive newest first.
	validCert := make(map[string]string)
	for _, c := range snap.Certificates {
		if c.VendorID == "" {
			continue
		}
		if _, ok := validCert[c.VendorID]; ok {
			continue
		}
		if IsCompliant(*c, asOf) {
			validCert[c.VendorID] = c.ID
		}
	}

	out := make([]VendorStatus, 0, len(snap.Authorizations))
	for _, a := range snap.Authorizations {
		vs := VendorStatus{VendorID: a.VendorID, AuthorizationStatus: a.Status}
		if id, ok := validCert[a.VendorID]; ok {
			vs.HasValidCertificate = true
			vs.CertificateID = id
		}
		out = append(out, vs)
	}
	return out, nil
}

// BuildingTenants lists the building's tenants that have submitted
// certificates, with the same validity flag as BuildingVendors.
func (e *Evaluator) BuildingTenants(ctx context.Context, buildingID string, asOf time.Time) ([]TenantStatus, error) {
	if buildingID == "" {
		return nil, ErrInvalidInput
	}
	snap, err := e.store.BuildingSnapshot(ctx, buildingID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int)
	var out []TenantStatus
	for _, c := range snap.Certificates {
		if c.TenantID == "" {
			continue
		}
		idx, ok := seen[c.TenantID]
		if !ok {
			seen[c.TenantID] = len(out)
			out = append(out, TenantStatus{TenantID: c.TenantID})
			idx = len(out) - 1
		}
		if !out[idx].HasValidCertificate && IsCompliant(*c, asOf) {
			out[idx].HasValidCertificate = true
			out[idx].CertificateID = c.ID
		}
	}
	return out, nil
}

// VendorRollup reports the vendor's decision for every building it holds an
// APPROVED certificate at, selecting the latest-created certificate per
// building and applying the same predicate as CheckAccess.
func (e *Evaluator) VendorRollup(ctx context.Context, vendorID string, asOf time.Time) ([]BuildingDecision, error) {
	if vendorID == "" {
		return nil, ErrInvalidInput
	}
	certs, err := e.store.VendorCertificates(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	// Certificates arrive newest first; keep the first APPROVED one seen
	// per building.
	latest := make(map[string]*Certificate)
	var order []string
	for _, c := range certs {
		if c.Status != StatusApproved {
			continue
		}
		if _, ok := latest[c.BuildingID]; ok {
			continue
		}
		latest[c.BuildingID] = c
		order = append(order, c.BuildingID)
	}

	out := make([]BuildingDecision, 0, len(order))
	for _, buildingID := range order {
		out = append(out, BuildingDecision{
			BuildingID: buildingID,
			Decision:   decide(latest[buildingID], asOf),
		})
	}
	return out, nil
}
