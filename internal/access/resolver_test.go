package access

import (
	"context"
	"testing"
)

// fakeRelations is an in-memory RelationStore for resolver tests.
type fakeRelations struct {
	users       map[string]*User
	buildings   map[string]*Building
	grants      map[string]map[string]bool // userID -> buildingID
	vendors     map[string]*Vendor         // by user id
	tenants     map[string]*Tenant         // by user id
	guards      map[string]*Guard          // by user id
	authorized  map[string]map[string]bool // vendorID -> buildingID (APPROVED)
	assignments map[string]map[string]bool // guardID -> buildingID
	certRefs    map[string]*CertificateRef
}

func newFakeRelations() *fakeRelations {
	return &fakeRelations{
		users:       map[string]*User{},
		buildings:   map[string]*Building{},
		grants:      map[string]map[string]bool{},
		vendors:     map[string]*Vendor{},
		tenants:     map[string]*Tenant{},
		guards:      map[string]*Guard{},
		authorized:  map[string]map[string]bool{},
		assignments: map[string]map[string]bool{},
		certRefs:    map[string]*CertificateRef{},
	}
}

func (f *fakeRelations) FindUser(_ context.Context, id string) (*User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRelations) FindBuilding(_ context.Context, id string) (*Building, error) {
	if b, ok := f.buildings[id]; ok {
		return b, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRelations) ListBuildingsByOrg(_ context.Context, orgID string) ([]*Building, error) {
	var out []*Building
	for _, b := range f.buildings {
		if b.OrganizationID == orgID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRelations) ListBuildingsByOwner(_ context.Context, ownerID string) ([]*Building, error) {
	var out []*Building
	for _, b := range f.buildings {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRelations) HasGrant(_ context.Context, userID, buildingID string) (bool, error) {
	return f.grants[userID][buildingID], nil
}

func (f *fakeRelations) ListGrantedBuildings(_ context.Context, userID string) ([]*Building, error) {
	var out []*Building
	for id := range f.grants[userID] {
		if b, ok := f.buildings[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRelations) FindVendorByUser(_ context.Context, userID string) (*Vendor, error) {
	if v, ok := f.vendors[userID]; ok {
		return v, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRelations) FindTenantByUser(_ context.Context, userID string) (*Tenant, error) {
	if t, ok := f.tenants[userID]; ok {
		return t, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRelations) FindTenant(_ context.Context, id string) (*Tenant, error) {
	for _, t := range f.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRelations) FindGuardByUser(_ context.Context, userID string) (*Guard, error) {
	if g, ok := f.guards[userID]; ok {
		return g, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRelations) HasApprovedAuthorization(_ context.Context, vendorID, buildingID string) (bool, error) {
	return f.authorized[vendorID][buildingID], nil
}

func (f *fakeRelations) ListAuthorizedBuildings(_ context.Context, vendorID string) ([]*Building, error) {
	var out []*Building
	for id := range f.authorized[vendorID] {
		if b, ok := f.buildings[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRelations) HasGuardAssignment(_ context.Context, guardID, buildingID string) (bool, error) {
	return f.assignments[guardID][buildingID], nil
}

func (f *fakeRelations) ListAssignedBuildings(_ context.Context, guardID string) ([]*Building, error) {
	var out []*Building
	for id := range f.assignments[guardID] {
		if b, ok := f.buildings[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRelations) FindCertificateRef(_ context.Context, certificateID string) (*CertificateRef, error) {
	if ref, ok := f.certRefs[certificateID]; ok {
		return ref, nil
	}
	return nil, ErrNotFound
}

// fixture: two buildings in org-1, one externally owned, with a manager
// granted only the first, plus vendor/tenant/guard profiles.
func fixture(t *testing.T) (*Resolver, *fakeRelations) {
	t.Helper()
	f := newFakeRelations()

	f.buildings["b1"] = &Building{ID: "b1", OrganizationID: "org-1", Name: "Torre Norte"}
	f.buildings["b2"] = &Building{ID: "b2", OrganizationID: "org-1", Name: "Torre Sur", OwnerID: "owner-user"}
	f.buildings["b3"] = &Building{ID: "b3", OrganizationID: "org-2", Name: "Edificio Ajeno"}

	f.users["ao"] = &User{ID: "ao", OrganizationID: "org-1", Role: RoleAccountOwner}
	f.users["pm"] = &User{ID: "pm", OrganizationID: "org-1", Role: RolePropertyManager}
	f.users["owner-user"] = &User{ID: "owner-user", OrganizationID: "org-1", Role: RoleBuildingOwner}
	f.users["vend-user"] = &User{ID: "vend-user", Role: RoleVendor}
	f.users["ten-user"] = &User{ID: "ten-user", OrganizationID: "org-1", Role: RoleTenant}
	f.users["guard-user"] = &User{ID: "guard-user", OrganizationID: "org-1", Role: RoleGuard}

	f.grants["pm"] = map[string]bool{"b1": true}
	f.vendors["vend-user"] = &Vendor{ID: "v1", UserID: "vend-user", CompanyName: "Limpieza SA"}
	f.authorized["v1"] = map[string]bool{"b1": true}
	f.tenants["ten-user"] = &Tenant{ID: "t1", UserID: "ten-user", BuildingID: "b2", BusinessName: "Cafe Uno"}
	f.guards["guard-user"] = &Guard{ID: "g1", UserID: "guard-user"}
	f.assignments["g1"] = map[string]bool{"b1": true}

	f.certRefs["cert-vendor"] = &CertificateRef{ID: "cert-vendor", BuildingID: "b1", VendorUserID: "vend-user"}
	f.certRefs["cert-tenant"] = &CertificateRef{ID: "cert-tenant", BuildingID: "b2", TenantUserID: "ten-user"}

	r, err := NewResolver(f)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, f
}

func TestCanViewBuilding(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		user     string
		building string
		want     bool
	}{
		{"account owner sees org building", "ao", "b1", true},
		{"account owner blind across orgs", "ao", "b3", false},
		{"property manager sees granted", "pm", "b1", true},
		{"property manager blind without grant", "pm", "b2", false},
		{"building owner sees owned", "owner-user", "b2", true},
		{"building owner blind elsewhere", "owner-user", "b1", false},
		{"vendor sees authorized", "vend-user", "b1", true},
		{"vendor blind without authorization", "vend-user", "b2", false},
		{"tenant sees own building", "ten-user", "b2", true},
		{"tenant blind elsewhere", "ten-user", "b1", false},
		{"guard sees assigned", "guard-user", "b1", true},
		{"guard blind without assignment", "guard-user", "b2", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.CanViewBuilding(ctx, *f.users[tc.user], tc.building)
			if err != nil {
				t.Fatalf("CanViewBuilding: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanViewBuildingFailClosed(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	// Missing building, missing profile, unknown role: all plain denials.
	if ok, err := r.CanViewBuilding(ctx, *f.users["ao"], "nope"); err != nil || ok {
		t.Errorf("missing building: got (%v, %v), want (false, nil)", ok, err)
	}
	noProfile := User{ID: "stray", Role: RoleVendor}
	if ok, err := r.CanViewBuilding(ctx, noProfile, "b1"); err != nil || ok {
		t.Errorf("missing profile: got (%v, %v), want (false, nil)", ok, err)
	}
	odd := User{ID: "x", Role: Role("SUPER_ADMIN")}
	if ok, err := r.CanViewBuilding(ctx, odd, "b1"); err != nil || ok {
		t.Errorf("unknown role: got (%v, %v), want (false, nil)", ok, err)
	}
	if ok, err := r.CanViewBuilding(ctx, *f.users["ao"], ""); err != nil || ok {
		t.Errorf("empty building id: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestUserBuildingsMatchesCanView(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	for _, userID := range []string{"ao", "pm", "owner-user", "vend-user", "ten-user", "guard-user"} {
		u := *f.users[userID]
		listed, err := r.UserBuildings(ctx, u)
		if err != nil {
			t.Fatalf("UserBuildings(%s): %v", userID, err)
		}
		visible := map[string]bool{}
		for _, b := range listed {
			visible[b.ID] = true
		}
		for bid := range f.buildings {
			can, err := r.CanViewBuilding(ctx, u, bid)
			if err != nil {
				t.Fatalf("CanViewBuilding(%s, %s): %v", userID, bid, err)
			}
			if can != visible[bid] {
				t.Errorf("user %s building %s: CanViewBuilding=%v but listed=%v", userID, bid, can, visible[bid])
			}
		}
	}
}

func TestCanAccessCOI(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		user string
		cert string
		want bool
	}{
		{"manager with visibility", "pm", "cert-vendor", true},
		{"manager without visibility", "pm", "cert-tenant", false},
		{"vendor reaches own cert", "vend-user", "cert-vendor", true},
		{"vendor blocked from foreign cert", "vend-user", "cert-tenant", false},
		{"tenant reaches own cert", "ten-user", "cert-tenant", true},
		{"tenant blocked from vendor cert", "ten-user", "cert-vendor", false},
		{"guard via assignment", "guard-user", "cert-vendor", true},
		{"guard blocked off assignment", "guard-user", "cert-tenant", false},
		{"building owner via ownership", "owner-user", "cert-tenant", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.CanAccessCOI(ctx, *f.users[tc.user], tc.cert)
			if err != nil {
				t.Fatalf("CanAccessCOI: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	if ok, err := r.CanAccessCOI(ctx, *f.users["pm"], "missing"); err != nil || ok {
		t.Errorf("missing certificate: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestCanCheckAccess(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	if ok, _ := r.CanCheckAccess(ctx, *f.users["guard-user"], "b1"); !ok {
		t.Error("assigned guard may check access")
	}
	if ok, _ := r.CanCheckAccess(ctx, *f.users["guard-user"], "b2"); ok {
		t.Error("unassigned guard may not check access")
	}
	if ok, _ := r.CanCheckAccess(ctx, *f.users["ao"], "b1"); !ok {
		t.Error("account owner may check access in org")
	}
	if ok, _ := r.CanCheckAccess(ctx, *f.users["vend-user"], "b1"); ok {
		t.Error("vendor never checks access")
	}
	if ok, _ := r.CanCheckAccess(ctx, *f.users["owner-user"], "b2"); ok {
		t.Error("building owner never checks access")
	}
}

func TestResolvePermission(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	// Capability denied outright, regardless of relation.
	if ok, _ := r.ResolvePermission(ctx, *f.users["owner-user"], ActionApproveVendors, "b2"); ok {
		t.Error("building owner lacks the approve-vendors capability")
	}
	// Capability alone suffices for non-building-scoped actions.
	if ok, _ := r.ResolvePermission(ctx, *f.users["ao"], ActionViewBilling, ""); !ok {
		t.Error("account owner may view billing")
	}
	// Building-scoped action needs visibility of the named building.
	if ok, _ := r.ResolvePermission(ctx, *f.users["pm"], ActionManageCOIs, "b1"); !ok {
		t.Error("property manager manages COIs in granted building")
	}
	if ok, _ := r.ResolvePermission(ctx, *f.users["pm"], ActionManageCOIs, "b2"); ok {
		t.Error("property manager blocked outside grant")
	}
	// Without a resource the capability answer stands.
	if ok, _ := r.ResolvePermission(ctx, *f.users["pm"], ActionManageCOIs, ""); !ok {
		t.Error("capability-only resolution when no resource is named")
	}
}

func TestValidateOrganizationAccess(t *testing.T) {
	r, f := fixture(t)
	ctx := context.Background()

	ao := *f.users["ao"]
	if ok, _ := r.ValidateOrganizationAccess(ctx, ao, OrgEntityBuilding, "b1"); !ok {
		t.Error("building in own org passes")
	}
	if ok, _ := r.ValidateOrganizationAccess(ctx, ao, OrgEntityBuilding, "b3"); ok {
		t.Error("building in foreign org fails")
	}
	// Vendors are cross-organization by design.
	if ok, _ := r.ValidateOrganizationAccess(ctx, ao, OrgEntityVendor, "v1"); !ok {
		t.Error("vendor entities always pass")
	}
	if ok, _ := r.ValidateOrganizationAccess(ctx, ao, OrgEntityTenant, "t1"); !ok {
		t.Error("tenant resolves through its building's org")
	}
}
