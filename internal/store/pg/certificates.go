package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aptogate.org/internal/compliance"
	"aptogate.org/internal/ids"
)

const certificateColumns = `id, coalesce(vendor_id,''), coalesce(tenant_id,''), building_id, status,
	coalesce(insurance_company,''), coverage_amounts, additional_insured, waiver_subrogation,
	effective_date, expiration_date, coalesce(review_notes,''), reviewed_at, created_at`

func scanCertificate(row interface{ Scan(...any) error }) (*compliance.Certificate, error) {
	var (
		c        compliance.Certificate
		coverage []byte
		reviewed sql.NullTime
	)
	err := row.Scan(&c.ID, &c.VendorID, &c.TenantID, &c.BuildingID, &c.Status,
		&c.InsuranceCompany, &coverage, &c.AdditionalInsured, &c.WaiverSubrogation,
		&c.EffectiveDate, &c.ExpirationDate, &c.ReviewNotes, &reviewed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(coverage) > 0 {
		if err := json.Unmarshal(coverage, &c.CoverageAmounts); err != nil {
			return nil, fmt.Errorf("decode coverage_amounts for %s: %w", c.ID, err)
		}
	}
	if reviewed.Valid {
		t := reviewed.Time
		c.ReviewedAt = &t
	}
	return &c, nil
}

func (s *Store) FindCertificate(ctx context.Context, id string) (*compliance.Certificate, error) {
	c, err := scanCertificate(s.db.QueryRowContext(ctx,
		`select `+certificateColumns+` from certificates where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, compliance.ErrNotFound
	}
	return c, err
}

// CreateCertificate inserts a new certificate. Status is forced to PENDING;
// review is the only path to APPROVED or REJECTED.
func (s *Store) CreateCertificate(ctx context.Context, cert *compliance.Certificate) error {
	if cert.BuildingID == "" {
		return fmt.Errorf("%w: building_id is required", compliance.ErrInvalidInput)
	}
	if (cert.VendorID == "") == (cert.TenantID == "") {
		return fmt.Errorf("%w: exactly one of vendor_id or tenant_id is required", compliance.ErrInvalidInput)
	}
	if cert.EffectiveDate.IsZero() || cert.ExpirationDate.IsZero() || cert.ExpirationDate.Before(cert.EffectiveDate) {
		return fmt.Errorf("%w: effective_date must not exceed expiration_date", compliance.ErrInvalidInput)
	}
	if cert.ID == "" {
		cert.ID = ids.New()
	}
	cert.Status = compliance.StatusPending
	cert.CreatedAt = time.Now().UTC()

	coverage, err := json.Marshal(cert.CoverageAmounts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into certificates(id, vendor_id, tenant_id, building_id, status, insurance_company,
			coverage_amounts, additional_insured, waiver_subrogation, effective_date, expiration_date, created_at)
		values ($1,nullif($2,''),nullif($3,''),$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, cert.ID, cert.VendorID, cert.TenantID, cert.BuildingID, cert.Status, cert.InsuranceCompany,
		coverage, cert.AdditionalInsured, cert.WaiverSubrogation, cert.EffectiveDate, cert.ExpirationDate, cert.CreatedAt)
	return err
}

func (s *Store) LatestApprovedVendor(ctx context.Context, vendorID, buildingID string) (*compliance.Certificate, error) {
	c, err := scanCertificate(s.db.QueryRowContext(ctx, `
		select `+certificateColumns+` from certificates
		where vendor_id=$1 and building_id=$2 and status='APPROVED'
		order by created_at desc, id desc
		limit 1
	`, vendorID, buildingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, compliance.ErrNotFound
	}
	return c, err
}

func (s *Store) LatestApprovedTenant(ctx context.Context, tenantID string) (*compliance.Certificate, error) {
	c, err := scanCertificate(s.db.QueryRowContext(ctx, `
		select `+certificateColumns+` from certificates
		where tenant_id=$1 and status='APPROVED'
		order by created_at desc, id desc
		limit 1
	`, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, compliance.ErrNotFound
	}
	return c, err
}

// BuildingSnapshot reads certificates and vendor authorizations of a building
// inside one repeatable-read transaction so the derived counts agree.
func (s *Store) BuildingSnapshot(ctx context.Context, buildingID string) (*compliance.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `select 1 from buildings where id=$1`, buildingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, compliance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap := &compliance.Snapshot{BuildingID: buildingID}

	rows, err := tx.QueryContext(ctx,
		`select `+certificateColumns+` from certificates where building_id=$1 order by created_at desc, id desc`,
		buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		snap.Certificates = append(snap.Certificates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	auths, err := tx.QueryContext(ctx,
		`select vendor_id, status from vendor_building_authorizations where building_id=$1`,
		buildingID)
	if err != nil {
		return nil, err
	}
	defer auths.Close()
	for auths.Next() {
		var a compliance.VendorAuthorization
		if err := auths.Scan(&a.VendorID, &a.Status); err != nil {
			return nil, err
		}
		snap.Authorizations = append(snap.Authorizations, a)
	}
	if err := auths.Err(); err != nil {
		return nil, err
	}
	return snap, tx.Commit()
}

func (s *Store) VendorCertificates(ctx context.Context, vendorID string) ([]*compliance.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+certificateColumns+` from certificates where vendor_id=$1 order by created_at desc, id desc`,
		vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*compliance.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ReviewCertificate(ctx context.Context, id string, status compliance.Status, notes string, reviewedAt time.Time) (*compliance.Certificate, error) {
	res, err := s.db.ExecContext(ctx, `
		update certificates
		set status=$2, review_notes=nullif($3,''), reviewed_at=$4
		where id=$1
	`, id, status, notes, reviewedAt)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, compliance.ErrNotFound
	}
	return s.FindCertificate(ctx, id)
}

// CertificateVendorContact resolves the vendor notification contact for a
// certificate, for rejection notices.
func (s *Store) CertificateVendorContact(ctx context.Context, certificateID string) (string, string, error) {
	var name, email string
	err := s.db.QueryRowContext(ctx, `
		select v.company_name, coalesce(v.contact_email,'')
		from certificates c
		join vendors v on v.id = c.vendor_id
		where c.id=$1
	`, certificateID).Scan(&name, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", compliance.ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return name, email, nil
}
