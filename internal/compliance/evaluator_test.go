package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCertificates is an in-memory CertificateStore for evaluator tests.
type fakeCertificates struct {
	certs     []*Certificate
	snapshots map[string]*Snapshot
}

func (f *fakeCertificates) FindCertificate(_ context.Context, id string) (*Certificate, error) {
	for _, c := range f.certs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeCertificates) CreateCertificate(_ context.Context, cert *Certificate) error {
	f.certs = append(f.certs, cert)
	return nil
}

func (f *fakeCertificates) LatestApprovedVendor(_ context.Context, vendorID, buildingID string) (*Certificate, error) {
	var best *Certificate
	for _, c := range f.certs {
		if c.VendorID != vendorID || c.BuildingID != buildingID || c.Status != StatusApproved {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (f *fakeCertificates) LatestApprovedTenant(_ context.Context, tenantID string) (*Certificate, error) {
	var best *Certificate
	for _, c := range f.certs {
		if c.TenantID != tenantID || c.Status != StatusApproved {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (f *fakeCertificates) BuildingSnapshot(_ context.Context, buildingID string) (*Snapshot, error) {
	if s, ok := f.snapshots[buildingID]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (f *fakeCertificates) VendorCertificates(_ context.Context, vendorID string) ([]*Certificate, error) {
	var out []*Certificate
	for i := len(f.certs) - 1; i >= 0; i-- {
		if f.certs[i].VendorID == vendorID {
			out = append(out, f.certs[i])
		}
	}
	return out, nil
}

func (f *fakeCertificates) ReviewCertificate(ctx context.Context, id string, status Status, notes string, reviewedAt time.Time) (*Certificate, error) {
	c, err := f.FindCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = status
	c.ReviewNotes = notes
	c.ReviewedAt = &reviewedAt
	return c, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsCompliant(t *testing.T) {
	cert := Certificate{
		Status:         StatusApproved,
		EffectiveDate:  day("2024-01-01"),
		ExpirationDate: day("2025-01-01"),
	}

	assert.True(t, IsCompliant(cert, day("2024-06-01")))
	assert.True(t, IsCompliant(cert, day("2024-01-01")), "effective day counts")
	assert.False(t, IsCompliant(cert, day("2023-12-31")), "before effective")
	assert.False(t, IsCompliant(cert, day("2025-01-15")), "after expiration")

	// Status gates dates entirely.
	for _, st := range []Status{StatusPending, StatusRejected} {
		c := cert
		c.Status = st
		assert.False(t, IsCompliant(c, day("2024-06-01")), "status %s never grants access", st)
	}

	// Zero dates never pass.
	zero := cert
	zero.ExpirationDate = time.Time{}
	assert.False(t, IsCompliant(zero, day("2024-06-01")))
}

func TestIsCompliantInclusiveUpperBound(t *testing.T) {
	// The boundary rule is pinned: valid through the expiration instant
	// itself, invalid immediately after.
	require.True(t, UpperBoundInclusive)

	cert := Certificate{
		Status:         StatusApproved,
		EffectiveDate:  day("2024-01-01"),
		ExpirationDate: day("2025-01-01"),
	}
	assert.True(t, IsCompliant(cert, cert.ExpirationDate))
	assert.False(t, IsCompliant(cert, cert.ExpirationDate.Add(time.Second)))
}

func TestCheckAccess(t *testing.T) {
	store := &fakeCertificates{}
	ev, err := NewEvaluator(store)
	require.NoError(t, err)
	ctx := context.Background()

	approved := &Certificate{
		ID: "c1", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
		EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01"),
		CreatedAt: day("2024-01-02"),
	}
	store.certs = append(store.certs, approved)

	t.Run("eligible inside window", func(t *testing.T) {
		d, err := ev.CheckAccess(ctx, "v1", "b1", day("2024-06-01"))
		require.NoError(t, err)
		assert.True(t, d.Eligible)
		assert.Equal(t, ReasonValid, d.Reason)
		assert.Equal(t, "c1", d.CertificateID)
	})

	t.Run("expired after window", func(t *testing.T) {
		d, err := ev.CheckAccess(ctx, "v1", "b1", day("2025-01-15"))
		require.NoError(t, err)
		assert.False(t, d.Eligible)
		assert.Equal(t, ReasonExpired, d.Reason)
		assert.Equal(t, "c1", d.CertificateID)
	})

	t.Run("not yet effective", func(t *testing.T) {
		d, err := ev.CheckAccess(ctx, "v1", "b1", day("2023-06-01"))
		require.NoError(t, err)
		assert.False(t, d.Eligible)
		assert.Equal(t, ReasonNotYetEffective, d.Reason)
	})

	t.Run("no approved certificate", func(t *testing.T) {
		d, err := ev.CheckAccess(ctx, "v2", "b1", day("2024-06-01"))
		require.NoError(t, err)
		assert.False(t, d.Eligible)
		assert.Equal(t, ReasonNoCertificate, d.Reason)
		assert.Empty(t, d.CertificateID)
	})

	t.Run("rejected only counts as no certificate", func(t *testing.T) {
		store.certs = append(store.certs, &Certificate{
			ID: "c2", VendorID: "v3", BuildingID: "b1", Status: StatusRejected,
			EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01"),
			CreatedAt: day("2024-01-03"),
		})
		d, err := ev.CheckAccess(ctx, "v3", "b1", day("2024-06-01"))
		require.NoError(t, err)
		assert.Equal(t, ReasonNoCertificate, d.Reason)
	})

	t.Run("latest approved wins", func(t *testing.T) {
		store.certs = append(store.certs, &Certificate{
			ID: "c3", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
			EffectiveDate: day("2025-01-01"), ExpirationDate: day("2026-01-01"),
			CreatedAt: day("2025-01-02"),
		})
		d, err := ev.CheckAccess(ctx, "v1", "b1", day("2025-06-01"))
		require.NoError(t, err)
		assert.True(t, d.Eligible)
		assert.Equal(t, "c3", d.CertificateID)
	})

	t.Run("input validation", func(t *testing.T) {
		_, err := ev.CheckAccess(ctx, "", "b1", day("2024-06-01"))
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = ev.CheckAccess(ctx, "v1", "", day("2024-06-01"))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestCheckTenantAccess(t *testing.T) {
	store := &fakeCertificates{certs: []*Certificate{{
		ID: "tc1", TenantID: "t1", BuildingID: "b1", Status: StatusApproved,
		EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01"),
		CreatedAt: day("2024-01-02"),
	}}}
	ev, err := NewEvaluator(store)
	require.NoError(t, err)

	d, err := ev.CheckTenantAccess(context.Background(), "t1", day("2024-06-01"))
	require.NoError(t, err)
	assert.True(t, d.Eligible)

	d, err = ev.CheckTenantAccess(context.Background(), "t2", day("2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, ReasonNoCertificate, d.Reason)
}

func TestBuildingSummary(t *testing.T) {
	asOf := day("2024-06-01")
	snap := &Snapshot{
		BuildingID: "b1",
		Certificates: []*Certificate{
			// v1: valid approved certificate.
			{ID: "c1", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01")},
			// v2: approved but already expired.
			{ID: "c2", VendorID: "v2", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2023-01-01"), ExpirationDate: day("2024-01-01")},
			// v1 also holds a pending renewal; must not double-count the vendor.
			{ID: "c3", VendorID: "v1", BuildingID: "b1", Status: StatusPending,
				EffectiveDate: day("2025-01-01"), ExpirationDate: day("2026-01-01")},
			{ID: "c4", VendorID: "v4", BuildingID: "b1", Status: StatusRejected,
				EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01")},
		},
		Authorizations: []VendorAuthorization{
			{VendorID: "v1", Status: "APPROVED"},
			{VendorID: "v2", Status: "APPROVED"},
			{VendorID: "v3", Status: "APPROVED"}, // no certificate at all
			{VendorID: "v4", Status: "PENDING"},
			{VendorID: "v5", Status: "REJECTED"},
		},
	}
	ev, err := NewEvaluator(&fakeCertificates{snapshots: map[string]*Snapshot{"b1": snap}})
	require.NoError(t, err)

	sum, err := ev.BuildingSummary(context.Background(), "b1", asOf)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalCertificates)
	assert.Equal(t, 1, sum.PendingCertificates)
	assert.Equal(t, 2, sum.ApprovedCertificates)
	assert.Equal(t, 1, sum.RejectedCertificates)
	assert.Equal(t, 1, sum.ValidCertificates)
	assert.Equal(t, 1, sum.ExpiredCertificates)

	assert.Equal(t, 1, sum.PendingAuthorizations)
	assert.Equal(t, 3, sum.ApprovedAuthorizations)
	assert.Equal(t, 1, sum.RejectedAuthorizations)

	assert.Equal(t, 1, sum.VendorsWithValidCertificate)
	assert.Equal(t, 1, sum.VendorsWithExpiredCertificate)
	assert.Equal(t, 1, sum.VendorsWithoutCertificate)
}

func TestVendorRollup(t *testing.T) {
	store := &fakeCertificates{certs: []*Certificate{
		// Oldest first; VendorCertificates returns newest first.
		{ID: "old", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
			EffectiveDate: day("2022-01-01"), ExpirationDate: day("2023-01-01"), CreatedAt: day("2022-01-02")},
		{ID: "new", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
			EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01"), CreatedAt: day("2024-01-02")},
		{ID: "other", VendorID: "v1", BuildingID: "b2", Status: StatusApproved,
			EffectiveDate: day("2023-01-01"), ExpirationDate: day("2024-01-01"), CreatedAt: day("2023-01-02")},
		{ID: "pending", VendorID: "v1", BuildingID: "b3", Status: StatusPending,
			EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01"), CreatedAt: day("2024-01-03")},
	}}
	ev, err := NewEvaluator(store)
	require.NoError(t, err)

	rollup, err := ev.VendorRollup(context.Background(), "v1", day("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, rollup, 2, "pending-only buildings are absent")

	byBuilding := map[string]Decision{}
	for _, bd := range rollup {
		byBuilding[bd.BuildingID] = bd.Decision
	}
	assert.Equal(t, "new", byBuilding["b1"].CertificateID, "latest approved per building")
	assert.True(t, byBuilding["b1"].Eligible)
	assert.Equal(t, ReasonExpired, byBuilding["b2"].Reason)
}

func TestBuildingVendors(t *testing.T) {
	asOf := day("2024-06-01")
	snap := &Snapshot{
		BuildingID: "b1",
		Certificates: []*Certificate{
			{ID: "c1", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01")},
			{ID: "c2", VendorID: "v2", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2023-01-01"), ExpirationDate: day("2024-01-01")},
		},
		Authorizations: []VendorAuthorization{
			{VendorID: "v1", Status: "APPROVED"},
			{VendorID: "v2", Status: "APPROVED"},
			{VendorID: "v3", Status: "PENDING"},
		},
	}
	ev, err := NewEvaluator(&fakeCertificates{snapshots: map[string]*Snapshot{"b1": snap}})
	require.NoError(t, err)

	vendors, err := ev.BuildingVendors(context.Background(), "b1", asOf)
	require.NoError(t, err)
	require.Len(t, vendors, 3)

	byID := map[string]VendorStatus{}
	for _, v := range vendors {
		byID[v.VendorID] = v
	}
	assert.True(t, byID["v1"].HasValidCertificate)
	assert.Equal(t, "c1", byID["v1"].CertificateID)
	assert.False(t, byID["v2"].HasValidCertificate, "expired certificate does not flag")
	assert.False(t, byID["v3"].HasValidCertificate)
	assert.Equal(t, "PENDING", byID["v3"].AuthorizationStatus)
}

func TestBuildingTenants(t *testing.T) {
	asOf := day("2024-06-01")
	snap := &Snapshot{
		BuildingID: "b1",
		Certificates: []*Certificate{
			{ID: "t-old", TenantID: "t1", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2022-01-01"), ExpirationDate: day("2023-01-01")},
			{ID: "t-new", TenantID: "t1", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01")},
			{ID: "t-rej", TenantID: "t2", BuildingID: "b1", Status: StatusRejected,
				EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01")},
			{ID: "v-cert", VendorID: "v1", BuildingID: "b1", Status: StatusApproved,
				EffectiveDate: day("2024-01-01"), ExpirationDate: day("2025-01-01")},
		},
	}
	ev, err := NewEvaluator(&fakeCertificates{snapshots: map[string]*Snapshot{"b1": snap}})
	require.NoError(t, err)

	tenants, err := ev.BuildingTenants(context.Background(), "b1", asOf)
	require.NoError(t, err)
	require.Len(t, tenants, 2, "vendor certificates are excluded")

	byID := map[string]TenantStatus{}
	for _, ts := range tenants {
		byID[ts.TenantID] = ts
	}
	assert.True(t, byID["t1"].HasValidCertificate)
	assert.False(t, byID["t2"].HasValidCertificate)
}
