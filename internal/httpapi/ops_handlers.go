package httpapi

import (
	"net/http"
	"time"

	"aptogate.org/internal/audit"
)

type runSweepRequest struct {
	AsOf time.Time `json:"as_of"`
}

// handleRunSweep triggers one expiry reconciliation pass on demand. The
// scheduled path lives in the sweeper binary; this endpoint exists for
// operations and backfills.
func (a *API) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Sweeper == nil {
		writeError(w, r, http.StatusServiceUnavailable, "sweeper unavailable")
		return
	}
	req := runSweepRequest{}
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	report, err := a.deps.Sweeper.Run(r.Context(), asOf)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: "SWEEP",
		EntityID:   asOf.Format("2006-01-02"),
		Action:     "RUN_EXPIRY_SWEEP",
		Metadata: map[string]any{
			"processed": report.Processed,
			"sent":      report.Sent,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		},
	})
	writeJSON(w, http.StatusOK, report)
}

type recordAuditRequest struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id"`
	Metadata   map[string]any `json:"metadata"`
}

func (a *API) handleRecordAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Recorder == nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit recorder unavailable")
		return
	}
	var req recordAuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.EntityType == "" || req.EntityID == "" || req.Action == "" {
		writeError(w, r, http.StatusBadRequest, "entity_type, entity_id and action are required")
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		ActorID:    req.ActorID,
		Metadata:   req.Metadata,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "recorded"})
}

type issueLinkRequest struct {
	VendorID   string `json:"vendor_id"`
	BuildingID string `json:"building_id"`
}

func (a *API) handleIssueLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Issuer == nil {
		writeError(w, r, http.StatusServiceUnavailable, "link issuer unavailable")
		return
	}
	var req issueLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token, expiresAt, err := a.deps.Issuer.Issue(req.VendorID, req.BuildingID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

type submissionRequest struct {
	Token             string         `json:"token"`
	InsuranceCompany  string         `json:"insurance_company"`
	CoverageAmounts   map[string]any `json:"coverage_amounts"`
	AdditionalInsured bool           `json:"additional_insured"`
	WaiverSubrogation bool           `json:"waiver_subrogation"`
	EffectiveDate     time.Time      `json:"effective_date"`
	ExpirationDate    time.Time      `json:"expiration_date"`
}

// handleSubmission accepts a certificate through a signed submission link.
// The vendor and building come from the token, never the body, and the
// certificate enters as PENDING.
func (a *API) handleSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Issuer == nil || a.deps.Certs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "submissions unavailable")
		return
	}
	var req submissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, err := a.deps.Issuer.Validate(req.Token)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired submission link")
		return
	}
	cert := createCertificateRequest{
		VendorID:          claims.VendorID,
		BuildingID:        claims.BuildingID,
		InsuranceCompany:  req.InsuranceCompany,
		CoverageAmounts:   req.CoverageAmounts,
		AdditionalInsured: req.AdditionalInsured,
		WaiverSubrogation: req.WaiverSubrogation,
		EffectiveDate:     req.EffectiveDate,
		ExpirationDate:    req.ExpirationDate,
	}.certificate()
	if err := a.deps.Certs.CreateCertificate(r.Context(), cert); err != nil {
		handleComplianceError(w, r, err)
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: "COI",
		EntityID:   cert.ID,
		Action:     "SUBMIT_COI_LINK",
		ActorID:    claims.VendorID,
		Metadata: map[string]any{
			"building_id": cert.BuildingID,
		},
	})
	writeJSON(w, http.StatusCreated, cert)
}
