// Package httpapi is the HTTP layer of the decision engine.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"aptogate.org/internal/access"
	"aptogate.org/internal/alert"
	"aptogate.org/internal/audit"
	"aptogate.org/internal/coirequest"
	"aptogate.org/internal/compliance"
	"aptogate.org/internal/obs"
)

// ReadyProbe reports readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// UserSource loads the acting user for permission resolution.
type UserSource interface {
	FindUser(ctx context.Context, id string) (*access.User, error)
}

// BuildingAdmin mutates buildings and the visibility grants that
// portfolio/property-manager scoping depends on.
type BuildingAdmin interface {
	CreateBuilding(ctx context.Context, b *access.Building) error
	DeleteBuilding(ctx context.Context, id string) error
	UpsertGrant(ctx context.Context, g access.BuildingGrant) error
	RemoveGrant(ctx context.Context, userID, buildingID string) error
	SetBuildingOwner(ctx context.Context, buildingID, ownerID string) error
}

// Deps bundles the services the API exposes. Nil members disable their
// endpoints with 503 rather than panicking.
type Deps struct {
	Users     UserSource
	Resolver  *access.Resolver
	Evaluator *compliance.Evaluator
	Reviewer  *compliance.Reviewer
	Certs     compliance.CertificateStore
	Admin     BuildingAdmin
	Sweeper   *alert.Sweeper
	Recorder  *audit.Recorder
	Issuer    *coirequest.Issuer
}

type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	deps       Deps
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		deps:       deps,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// permission resolution and building visibility
	a.mux.HandleFunc("/v1/permissions/resolve", a.handleResolvePermission)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)
	a.mux.HandleFunc("/v1/buildings", a.handleBuildings)
	a.mux.HandleFunc("/v1/buildings/", a.handleBuildingScoped)

	// compliance decisions
	a.mux.HandleFunc("/v1/access/check", a.handleAccessCheck)
	a.mux.HandleFunc("/v1/vendors/", a.handleVendorScoped)
	a.mux.HandleFunc("/v1/certificates", a.handleCertificates)
	a.mux.HandleFunc("/v1/certificates/", a.handleCertificateScoped)

	// expiry sweep, audit, submission links
	a.mux.HandleFunc("/v1/sweeps/run", a.handleRunSweep)
	a.mux.HandleFunc("/v1/audit", a.handleRecordAudit)
	a.mux.HandleFunc("/v1/coi-requests", a.handleIssueLink)
	a.mux.HandleFunc("/v1/coi-submissions", a.handleSubmission)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with metrics instrumentation.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "aptogate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "aptogate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
