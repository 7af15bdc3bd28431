package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"aptogate.org/internal/alert"
	"aptogate.org/internal/ids"
	"aptogate.org/internal/notify"
)

// ListExpiring returns PENDING and APPROVED certificates expiring in
// [from, to], joined with the vendor contact and building name. Tenant
// certificates carry no outbound contact and are excluded.
func (s *Store) ListExpiring(ctx context.Context, from, to time.Time) ([]alert.ExpiringCertificate, error) {
	rows, err := s.db.QueryContext(ctx, `
		select c.id, coalesce(c.vendor_id,''), coalesce(c.tenant_id,''), c.building_id, c.status,
		       coalesce(c.insurance_company,''), c.coverage_amounts, c.additional_insured, c.waiver_subrogation,
		       c.effective_date, c.expiration_date, coalesce(c.review_notes,''), c.reviewed_at, c.created_at,
		       v.company_name, coalesce(v.contact_phone,''), coalesce(v.contact_email,''), b.name
		from certificates c
		join vendors v on v.id = c.vendor_id
		join buildings b on b.id = c.building_id
		where c.status in ('PENDING','APPROVED')
		  and c.expiration_date between $1 and $2
		order by c.expiration_date, c.id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.ExpiringCertificate
	for rows.Next() {
		var ec alert.ExpiringCertificate
		var coverage []byte
		var reviewed sql.NullTime
		c := &ec.Certificate
		err := rows.Scan(&c.ID, &c.VendorID, &c.TenantID, &c.BuildingID, &c.Status,
			&c.InsuranceCompany, &coverage, &c.AdditionalInsured, &c.WaiverSubrogation,
			&c.EffectiveDate, &c.ExpirationDate, &c.ReviewNotes, &reviewed, &c.CreatedAt,
			&ec.VendorName, &ec.ContactPhone, &ec.ContactEmail, &ec.BuildingName)
		if err != nil {
			return nil, err
		}
		if len(coverage) > 0 {
			if err := json.Unmarshal(coverage, &c.CoverageAmounts); err != nil {
				return nil, err
			}
		}
		if reviewed.Valid {
			t := reviewed.Time
			c.ReviewedAt = &t
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

func (s *Store) AlreadySent(ctx context.Context, ch notify.Channel, recipient, subject string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		select 1 from notification_log where type=$1 and recipient=$2 and subject=$3
	`, string(ch), recipient, subject).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordSent appends the notification row. The unique key on
// (type, recipient, subject) makes this the authoritative duplicate gate:
// a conflicting insert is a no-op and reports false.
func (s *Store) RecordSent(ctx context.Context, rec alert.Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		insert into notification_log(id, type, recipient, subject, content, status, sent_at)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (type, recipient, subject) do nothing
	`, rec.ID, string(rec.Channel), rec.Recipient, rec.Subject, rec.Content, rec.Status, rec.SentAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
