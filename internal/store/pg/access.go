package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aptogate.org/internal/access"
	"aptogate.org/internal/ids"
)

const buildingColumns = `id, organization_id, name, coalesce(address,''), coalesce(city,''),
	coalesce(state,''), coalesce(zip_code,''), coalesce(owner_id,''), coalesce(created_by,''),
	created_at, updated_at`

func scanBuilding(row interface{ Scan(...any) error }) (*access.Building, error) {
	var b access.Building
	err := row.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Address, &b.City,
		&b.State, &b.ZipCode, &b.OwnerID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*access.User, error) {
	var u access.User
	err := s.db.QueryRowContext(ctx, `
		select id, coalesce(organization_id,''), email, coalesce(password_hash,''),
		       coalesce(first_name,''), coalesce(last_name,''), role, created_at, updated_at
		from users where id=$1
	`, id).Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindBuilding(ctx context.Context, id string) (*access.Building, error) {
	b, err := scanBuilding(s.db.QueryRowContext(ctx,
		`select `+buildingColumns+` from buildings where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	return b, err
}

func (s *Store) ListBuildingsByOrg(ctx context.Context, orgID string) ([]*access.Building, error) {
	return s.listBuildings(ctx,
		`select `+buildingColumns+` from buildings where organization_id=$1 order by name`, orgID)
}

func (s *Store) ListBuildingsByOwner(ctx context.Context, ownerID string) ([]*access.Building, error) {
	return s.listBuildings(ctx,
		`select `+buildingColumns+` from buildings where owner_id=$1 order by name`, ownerID)
}

func (s *Store) ListGrantedBuildings(ctx context.Context, userID string) ([]*access.Building, error) {
	return s.listBuildings(ctx, `
		select `+bqualified("b")+`
		from buildings b
		join user_building_access g on g.building_id = b.id
		where g.user_id=$1
		order by b.name
	`, userID)
}

func (s *Store) ListAuthorizedBuildings(ctx context.Context, vendorID string) ([]*access.Building, error) {
	return s.listBuildings(ctx, `
		select `+bqualified("b")+`
		from buildings b
		join vendor_building_authorizations a on a.building_id = b.id
		where a.vendor_id=$1 and a.status='APPROVED'
		order by b.name
	`, vendorID)
}

func (s *Store) ListAssignedBuildings(ctx context.Context, guardID string) ([]*access.Building, error) {
	return s.listBuildings(ctx, `
		select `+bqualified("b")+`
		from buildings b
		join guard_building_assignments a on a.building_id = b.id
		where a.guard_id=$1
		order by b.name
	`, guardID)
}

func bqualified(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.organization_id, %[1]s.name, coalesce(%[1]s.address,''),
		coalesce(%[1]s.city,''), coalesce(%[1]s.state,''), coalesce(%[1]s.zip_code,''),
		coalesce(%[1]s.owner_id,''), coalesce(%[1]s.created_by,''), %[1]s.created_at, %[1]s.updated_at`, alias)
}

func (s *Store) listBuildings(ctx context.Context, query string, args ...any) ([]*access.Building, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*access.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) HasGrant(ctx context.Context, userID, buildingID string) (bool, error) {
	return s.exists(ctx,
		`select 1 from user_building_access where user_id=$1 and building_id=$2`,
		userID, buildingID)
}

func (s *Store) HasApprovedAuthorization(ctx context.Context, vendorID, buildingID string) (bool, error) {
	return s.exists(ctx, `
		select 1 from vendor_building_authorizations
		where vendor_id=$1 and building_id=$2 and status='APPROVED'
	`, vendorID, buildingID)
}

func (s *Store) HasGuardAssignment(ctx context.Context, guardID, buildingID string) (bool, error) {
	return s.exists(ctx,
		`select 1 from guard_building_assignments where guard_id=$1 and building_id=$2`,
		guardID, buildingID)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) FindVendorByUser(ctx context.Context, userID string) (*access.Vendor, error) {
	var v access.Vendor
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, company_name, coalesce(contact_name,''),
		       coalesce(contact_phone,''), coalesce(contact_email,''), created_at
		from vendors where user_id=$1
	`, userID).Scan(&v.ID, &v.UserID, &v.CompanyName, &v.ContactName,
		&v.ContactPhone, &v.ContactEmail, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) FindTenantByUser(ctx context.Context, userID string) (*access.Tenant, error) {
	return s.findTenant(ctx, `where user_id=$1`, userID)
}

func (s *Store) FindTenant(ctx context.Context, id string) (*access.Tenant, error) {
	return s.findTenant(ctx, `where id=$1`, id)
}

func (s *Store) findTenant(ctx context.Context, where string, arg any) (*access.Tenant, error) {
	var t access.Tenant
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, building_id, business_name, coalesce(unit_number,''),
		       coalesce(contact_phone,''), coalesce(contact_email,''), created_at
		from tenants `+where, arg).Scan(&t.ID, &t.UserID, &t.BuildingID, &t.BusinessName,
		&t.UnitNumber, &t.ContactPhone, &t.ContactEmail, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindGuardByUser(ctx context.Context, userID string) (*access.Guard, error) {
	var g access.Guard
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, coalesce(first_name,''), coalesce(last_name,''),
		       coalesce(phone,''), coalesce(employee_id,''), created_at
		from guards where user_id=$1
	`, userID).Scan(&g.ID, &g.UserID, &g.FirstName, &g.LastName,
		&g.Phone, &g.EmployeeID, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) FindCertificateRef(ctx context.Context, certificateID string) (*access.CertificateRef, error) {
	var ref access.CertificateRef
	err := s.db.QueryRowContext(ctx, `
		select c.id, c.building_id, coalesce(v.user_id,''), coalesce(t.user_id,'')
		from certificates c
		left join vendors v on v.id = c.vendor_id
		left join tenants t on t.id = c.tenant_id
		where c.id=$1
	`, certificateID).Scan(&ref.ID, &ref.BuildingID, &ref.VendorUserID, &ref.TenantUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateBuilding inserts a building, minting an id when empty.
func (s *Store) CreateBuilding(ctx context.Context, b *access.Building) error {
	if b.OrganizationID == "" || b.Name == "" {
		return fmt.Errorf("%w: organization_id and name are required", access.ErrInvalidInput)
	}
	if b.ID == "" {
		b.ID = ids.New()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		insert into buildings(id, organization_id, name, address, city, state, zip_code, owner_id, created_by, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,nullif($8,''),nullif($9,''),$10,$10)
	`, b.ID, b.OrganizationID, b.Name, b.Address, b.City, b.State, b.ZipCode, b.OwnerID, b.CreatedBy, now)
	return err
}

// DeleteBuilding removes a building only when nothing depends on it:
// certificates and tenant profiles block deletion.
func (s *Store) DeleteBuilding(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var certs int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from certificates where building_id=$1`, id).Scan(&certs); err != nil {
		return err
	}
	if certs > 0 {
		return access.ErrBuildingHasCertificates
	}

	var tenants int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from tenants where building_id=$1`, id).Scan(&tenants); err != nil {
		return err
	}
	if tenants > 0 {
		return access.ErrBuildingHasTenants
	}

	res, err := tx.ExecContext(ctx, `delete from buildings where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return access.ErrNotFound
	}
	return tx.Commit()
}

// UpsertGrant assigns building visibility to a portfolio or property manager.
// Re-granting refreshes the assigner and timestamp. Cross-organization
// grants are rejected.
func (s *Store) UpsertGrant(ctx context.Context, g access.BuildingGrant) error {
	if g.UserID == "" || g.BuildingID == "" {
		return fmt.Errorf("%w: user_id and building_id are required", access.ErrInvalidInput)
	}
	var sameOrg bool
	err := s.db.QueryRowContext(ctx, `
		select u.organization_id is not null and u.organization_id = b.organization_id
		from users u, buildings b
		where u.id=$1 and b.id=$2
	`, g.UserID, g.BuildingID).Scan(&sameOrg)
	if errors.Is(err, sql.ErrNoRows) {
		return access.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !sameOrg {
		return fmt.Errorf("%w: user and building belong to different organizations", access.ErrInvalidInput)
	}
	if g.AssignedAt.IsZero() {
		g.AssignedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		insert into user_building_access(user_id, building_id, assigned_by, assigned_at)
		values ($1,$2,nullif($3,''),$4)
		on conflict (user_id, building_id) do update
		set assigned_by = excluded.assigned_by, assigned_at = excluded.assigned_at
	`, g.UserID, g.BuildingID, g.AssignedBy, g.AssignedAt)
	return err
}

func (s *Store) RemoveGrant(ctx context.Context, userID, buildingID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_building_access where user_id=$1 and building_id=$2`,
		userID, buildingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return access.ErrNotFound
	}
	return nil
}

// SetBuildingOwner links or clears the external BUILDING_OWNER of a building.
func (s *Store) SetBuildingOwner(ctx context.Context, buildingID, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`update buildings set owner_id=nullif($2,''), updated_at=now() where id=$1`,
		buildingID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return access.ErrNotFound
	}
	return nil
}
