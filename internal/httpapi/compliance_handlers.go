package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"aptogate.org/internal/audit"
	"aptogate.org/internal/compliance"
)

// handleAccessCheck answers the gate question: is this vendor (or tenant)
// currently apto at the building. When actor_id is supplied the caller is
// permission-checked first; the decision itself never errors on ineligibility.
func (a *API) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.deps.Evaluator == nil {
		writeError(w, r, http.StatusServiceUnavailable, "compliance evaluator unavailable")
		return
	}
	q := r.URL.Query()
	vendorID := q.Get("vendor_id")
	tenantID := q.Get("tenant_id")
	buildingID := q.Get("building_id")
	if (vendorID == "") == (tenantID == "") {
		writeError(w, r, http.StatusBadRequest, "exactly one of vendor_id or tenant_id is required")
		return
	}
	asOf, err := parseAsOf(q.Get("as_of"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "as_of must be RFC3339")
		return
	}

	if actorID := q.Get("actor_id"); actorID != "" && a.deps.Resolver != nil && a.deps.Users != nil {
		actor, err := a.deps.Users.FindUser(r.Context(), actorID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		allowed, err := a.deps.Resolver.CanCheckAccess(r.Context(), *actor, buildingID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		if !allowed {
			writeError(w, r, http.StatusForbidden, "access check not permitted")
			return
		}
	}

	var decision compliance.Decision
	if vendorID != "" {
		if buildingID == "" {
			writeError(w, r, http.StatusBadRequest, "building_id is required")
			return
		}
		decision, err = a.deps.Evaluator.CheckAccess(r.Context(), vendorID, buildingID, asOf)
	} else {
		decision, err = a.deps.Evaluator.CheckTenantAccess(r.Context(), tenantID, asOf)
	}
	if err != nil {
		handleComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleVendorScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/vendors/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "rollup" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.deps.Evaluator == nil {
		writeError(w, r, http.StatusServiceUnavailable, "compliance evaluator unavailable")
		return
	}
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "as_of must be RFC3339")
		return
	}
	rollup, err := a.deps.Evaluator.VendorRollup(r.Context(), parts[0], asOf)
	if err != nil {
		handleComplianceError(w, r, err)
		return
	}
	if rollup == nil {
		rollup = []compliance.BuildingDecision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rollup, "as_of": asOf})
}

type createCertificateRequest struct {
	VendorID          string         `json:"vendor_id"`
	TenantID          string         `json:"tenant_id"`
	BuildingID        string         `json:"building_id"`
	InsuranceCompany  string         `json:"insurance_company"`
	CoverageAmounts   map[string]any `json:"coverage_amounts"`
	AdditionalInsured bool           `json:"additional_insured"`
	WaiverSubrogation bool           `json:"waiver_subrogation"`
	EffectiveDate     time.Time      `json:"effective_date"`
	ExpirationDate    time.Time      `json:"expiration_date"`
	ActorID           string         `json:"actor_id"`
}

func (req createCertificateRequest) certificate() *compliance.Certificate {
	return &compliance.Certificate{
		VendorID:          req.VendorID,
		TenantID:          req.TenantID,
		BuildingID:        req.BuildingID,
		InsuranceCompany:  req.InsuranceCompany,
		CoverageAmounts:   req.CoverageAmounts,
		AdditionalInsured: req.AdditionalInsured,
		WaiverSubrogation: req.WaiverSubrogation,
		EffectiveDate:     req.EffectiveDate,
		ExpirationDate:    req.ExpirationDate,
	}
}

func (a *API) handleCertificates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Certs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "certificate store unavailable")
		return
	}
	var req createCertificateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	cert := req.certificate()
	if err := a.deps.Certs.CreateCertificate(r.Context(), cert); err != nil {
		handleComplianceError(w, r, err)
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: "COI",
		EntityID:   cert.ID,
		Action:     "UPLOAD_COI",
		ActorID:    req.ActorID,
		Metadata: map[string]any{
			"building_id": cert.BuildingID,
		},
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/certificates/%s", cert.ID))
	writeJSON(w, http.StatusCreated, cert)
}

type reviewCertificateRequest struct {
	Status  string `json:"status"`
	Notes   string `json:"notes"`
	ActorID string `json:"actor_id"`
}

func (a *API) handleCertificateScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/certificates/"), "/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if a.deps.Certs == nil {
			writeError(w, r, http.StatusServiceUnavailable, "certificate store unavailable")
			return
		}
		cert, err := a.deps.Certs.FindCertificate(r.Context(), parts[0])
		if err != nil {
			handleComplianceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cert)
	case len(parts) == 2 && parts[1] == "review":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if a.deps.Reviewer == nil {
			writeError(w, r, http.StatusServiceUnavailable, "certificate reviewer unavailable")
			return
		}
		var req reviewCertificateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		cert, err := a.deps.Reviewer.Review(r.Context(), parts[0], compliance.Status(req.Status), req.Notes, req.ActorID)
		if err != nil {
			handleComplianceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cert)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}
