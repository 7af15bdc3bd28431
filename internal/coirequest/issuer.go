// Package coirequest mints and validates signed COI submission links. A link
// binds one vendor to one building and lets the vendor submit a certificate
// without an account; submitted certificates always enter as PENDING.
package coirequest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aptogate.org/internal/ids"
)

// DefaultTTL is the default link lifetime (one week).
const DefaultTTL = 168 * time.Hour

var (
	ErrInvalidToken = errors.New("coirequest: invalid token")
	ErrInvalidInput = errors.New("coirequest: invalid input")
)

// Claims bind a submission link to one vendor and building.
type Claims struct {
	VendorID   string `json:"vendor_id"`
	BuildingID string `json:"building_id"`
	jwt.RegisteredClaims
}

// Issuer signs and validates submission links.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the default link lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock pins the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("coirequest: signing secret must be at least 32 bytes")
	}
	i := &Issuer{secret: secret, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue mints a signed link token for the (vendor, building) pair.
func (i *Issuer) Issue(vendorID, buildingID string) (string, time.Time, error) {
	vendorID = strings.TrimSpace(vendorID)
	buildingID = strings.TrimSpace(buildingID)
	if vendorID == "" || buildingID == "" {
		return "", time.Time{}, fmt.Errorf("%w: vendor_id and building_id are required", ErrInvalidInput)
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		VendorID:   vendorID,
		BuildingID: buildingID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ids.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses a link token and returns its claims. Expired, malformed
// or foreign-key tokens all come back as ErrInvalidToken.
func (i *Issuer) Validate(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.VendorID == "" || claims.BuildingID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
