package compliance

import (
	"errors"
	"time"
)

// Status is the stored review state of a certificate. "EXPIRED" is never a
// stored status; expiry is always derived from ExpirationDate at evaluation
// time.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Certificate is a certificate of insurance (COI) evidencing coverage for
// exactly one vendor or tenant at exactly one building.
type Certificate struct {
	ID                string         `json:"id"`
	VendorID          string         `json:"vendor_id,omitempty"`
	TenantID          string         `json:"tenant_id,omitempty"`
	BuildingID        string         `json:"building_id"`
	Status            Status         `json:"status"`
	InsuranceCompany  string         `json:"insurance_company,omitempty"`
	CoverageAmounts   map[string]any `json:"coverage_amounts,omitempty"`
	AdditionalInsured bool           `json:"additional_insured"`
	WaiverSubrogation bool           `json:"waiver_subrogation"`
	EffectiveDate     time.Time      `json:"effective_date"`
	ExpirationDate    time.Time      `json:"expiration_date"`
	ReviewNotes       string         `json:"review_notes,omitempty"`
	ReviewedAt        *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Reasons reported by access decisions.
const (
	ReasonValid           = "valid"
	ReasonExpired         = "expired"
	ReasonNotYetEffective = "not yet effective"
	ReasonNoCertificate   = "no approved certificate"
)

// Decision is the binary access verdict ("apto") for a vendor or tenant at
// a building.
type Decision struct {
	Eligible       bool      `json:"eligible"`
	Reason         string    `json:"reason"`
	CertificateID  string    `json:"certificate_id,omitempty"`
	Status         Status    `json:"status,omitempty"`
	EffectiveDate  time.Time `json:"effective_date,omitzero"`
	ExpirationDate time.Time `json:"expiration_date,omitzero"`
}

// VendorAuthorization is the slice of an authorization row the evaluator
// needs for building aggregates.
type VendorAuthorization struct {
	VendorID string
	Status   string
}

// Snapshot is a building's compliance state on one consistent read. The
// store must produce it from a single transaction or snapshot; the counts
// derived from it are use-once, never cached.
type Snapshot struct {
	BuildingID     string
	Certificates   []*Certificate
	Authorizations []VendorAuthorization
}

// BuildingSummary aggregates a building's certificate and vendor state as
// of one instant.
type BuildingSummary struct {
	BuildingID string    `json:"building_id"`
	AsOf       time.Time `json:"as_of"`

	TotalCertificates    int `json:"total_certificates"`
	PendingCertificates  int `json:"pending_certificates"`
	ApprovedCertificates int `json:"approved_certificates"`
	RejectedCertificates int `json:"rejected_certificates"`
	ValidCertificates    int `json:"valid_certificates"`
	ExpiredCertificates  int `json:"expired_certificates"`

	PendingAuthorizations  int `json:"pending_authorizations"`
	ApprovedAuthorizations int `json:"approved_authorizations"`
	RejectedAuthorizations int `json:"rejected_authorizations"`

	// Set differences over vendors holding an APPROVED authorization.
	VendorsWithValidCertificate   int `json:"vendors_with_valid_certificate"`
	VendorsWithExpiredCertificate int `json:"vendors_with_expired_certificate"`
	VendorsWithoutCertificate     int `json:"vendors_without_certificate"`
}

// VendorStatus is one row of a building's vendor listing: the authorization
// gate and the certificate verdict side by side.
type VendorStatus struct {
	VendorID            string `json:"vendor_id"`
	AuthorizationStatus string `json:"authorization_status"`
	HasValidCertificate bool   `json:"has_valid_certificate"`
	CertificateID       string `json:"certificate_id,omitempty"`
}

// TenantStatus is one row of a building's tenant listing.
type TenantStatus struct {
	TenantID            string `json:"tenant_id"`
	HasValidCertificate bool   `json:"has_valid_certificate"`
	CertificateID       string `json:"certificate_id,omitempty"`
}

// BuildingDecision is one entry of a vendor's cross-building rollup.
type BuildingDecision struct {
	BuildingID string   `json:"building_id"`
	Decision   Decision `json:"decision"`
}

var (
	ErrNotFound     = errors.New("compliance: not found")
	ErrInvalidInput = errors.New("compliance: invalid input")
	// ErrInvalidStatus rejects review outcomes other than APPROVED/REJECTED.
	ErrInvalidStatus = errors.New("compliance: invalid review status")
)
