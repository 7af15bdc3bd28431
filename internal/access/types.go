package access

import "time"

// Organization is the tenant boundary. It owns buildings and users; vendors
// are cross-organization actors and carry no organization of their own.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an identity with exactly one role. The role is immutable after
// creation. Depending on the role the user is linked to at most one of the
// vendor, tenant or guard profiles.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Building belongs to one organization and optionally has one external
// owner (a BUILDING_OWNER user).
type Building struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	ZipCode        string    `json:"zip_code,omitempty"`
	OwnerID        string    `json:"owner_id,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BuildingGrant is the explicit visibility grant for portfolio and property
// managers, unique per (user, building). For those two roles this is the
// sole visibility mechanism; organization membership alone is insufficient.
type BuildingGrant struct {
	UserID     string    `json:"user_id"`
	BuildingID string    `json:"building_id"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Vendor is the role-specific profile of a VENDOR user.
type Vendor struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CompanyName  string    `json:"company_name"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tenant is the role-specific profile of a TENANT user, scoped to exactly
// one building.
type Tenant struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BuildingID   string    `json:"building_id"`
	BusinessName string    `json:"business_name"`
	UnitNumber   string    `json:"unit_number,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Guard is the role-specific profile of a GUARD user.
type Guard struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	EmployeeID string    `json:"employee_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuthorizationStatus is the approval state of a vendor at a building.
type AuthorizationStatus string

const (
	AuthorizationPending  AuthorizationStatus = "PENDING"
	AuthorizationApproved AuthorizationStatus = "APPROVED"
	AuthorizationRejected AuthorizationStatus = "REJECTED"
)

// VendorAuthorization is the per-building approval gate for vendors. It is
// distinct from certificate validity: a vendor may be authorized and still
// lack a currently valid certificate.
type VendorAuthorization struct {
	VendorID   string              `json:"vendor_id"`
	BuildingID string              `json:"building_id"`
	Status     AuthorizationStatus `json:"status"`
	ApprovedAt *time.Time          `json:"approved_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// GuardAssignment scopes a guard to a building. Presence implies assignment;
// there is no status.
type GuardAssignment struct {
	GuardID    string    `json:"guard_id"`
	BuildingID string    `json:"building_id"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// CertificateRef is the slice of a certificate the resolver needs to answer
// ownership and building-scope questions: where it lives and which user owns
// the profile it belongs to.
type CertificateRef struct {
	ID           string
	BuildingID   string
	VendorUserID string
	TenantUserID string
}
