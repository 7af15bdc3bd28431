package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aptogate.org/internal/access"
	"aptogate.org/internal/audit"
	"aptogate.org/internal/compliance"
)

type resolvePermissionRequest struct {
	UserID      string `json:"user_id"`
	Action      string `json:"action"`
	ResourceRef string `json:"resource_ref"`
}

type resolvePermissionResponse struct {
	Allowed bool   `json:"allowed"`
	Role    string `json:"role,omitempty"`
}

func (a *API) handleResolvePermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Resolver == nil || a.deps.Users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "permission resolver unavailable")
		return
	}
	var req resolvePermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.Action == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and action are required")
		return
	}
	user, err := a.deps.Users.FindUser(r.Context(), req.UserID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	allowed, err := a.deps.Resolver.ResolvePermission(r.Context(), *user, access.Action(req.Action), req.ResourceRef)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolvePermissionResponse{Allowed: allowed, Role: string(user.Role)})
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "buildings" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.deps.Resolver == nil || a.deps.Users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "permission resolver unavailable")
		return
	}
	user, err := a.deps.Users.FindUser(r.Context(), parts[0])
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	buildings, err := a.deps.Resolver.UserBuildings(r.Context(), *user)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if buildings == nil {
		buildings = []*access.Building{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": buildings})
}

func (a *API) handleBuildingScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/buildings/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) > 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	buildingID := parts[0]
	if len(parts) == 1 {
		a.deleteBuilding(w, r, buildingID)
		return
	}
	switch parts[1] {
	case "summary":
		a.buildingSummary(w, r, buildingID)
	case "vendors":
		a.buildingVendors(w, r, buildingID)
	case "tenants":
		a.buildingTenants(w, r, buildingID)
	case "visibility":
		a.buildingVisibility(w, r, buildingID)
	case "grants":
		a.buildingGrants(w, r, buildingID)
	case "owner":
		a.buildingOwner(w, r, buildingID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

type createBuildingRequest struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	ZipCode        string `json:"zip_code"`
	OwnerID        string `json:"owner_id"`
	ActorID        string `json:"actor_id"`
}

func (a *API) handleBuildings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.deps.Admin == nil {
		writeError(w, r, http.StatusServiceUnavailable, "building admin unavailable")
		return
	}
	var req createBuildingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	b := &access.Building{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Address:        req.Address,
		City:           req.City,
		State:          req.State,
		ZipCode:        req.ZipCode,
		OwnerID:        req.OwnerID,
		CreatedBy:      req.ActorID,
	}
	if err := a.deps.Admin.CreateBuilding(r.Context(), b); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: "BUILDING",
		EntityID:   b.ID,
		Action:     "CREATE_BUILDING",
		ActorID:    req.ActorID,
		Metadata: map[string]any{
			"organization_id": b.OrganizationID,
		},
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/buildings/%s", b.ID))
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) deleteBuilding(w http.ResponseWriter, r *http.Request, buildingID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if a.deps.Admin == nil {
		writeError(w, r, http.StatusServiceUnavailable, "building admin unavailable")
		return
	}
	if err := a.deps.Admin.DeleteBuilding(r.Context(), buildingID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: "BUILDING",
		EntityID:   buildingID,
		Action:     "DELETE_BUILDING",
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

type grantRequest struct {
	UserID     string `json:"user_id"`
	AssignedBy string `json:"assigned_by"`
}

// buildingGrants manages the user_building_access rows portfolio and
// property managers see buildings through. POST assigns (idempotent upsert),
// DELETE revokes.
func (a *API) buildingGrants(w http.ResponseWriter, r *http.Request, buildingID string) {
	if a.deps.Admin == nil {
		writeError(w, r, http.StatusServiceUnavailable, "building admin unavailable")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req grantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		grant := access.BuildingGrant{
			UserID:     req.UserID,
			BuildingID: buildingID,
			AssignedBy: req.AssignedBy,
		}
		if err := a.deps.Admin.UpsertGrant(r.Context(), grant); err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.deps.Recorder.Record(r.Context(), audit.Entry{
			EntityType: "BUILDING",
			EntityID:   buildingID,
			Action:     "ASSIGN_BUILDING_ACCESS",
			ActorID:    req.AssignedBy,
			Metadata: map[string]any{
				"user_id": req.UserID,
			},
		})
		writeJSON(w, http.StatusCreated, map[string]any{"status": "granted"})
	case http.MethodDelete:
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeError(w, r, http.StatusBadRequest, "user_id is required")
			return
		}
		if err := a.deps.Admin.RemoveGrant(r.Context(), userID, buildingID); err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.deps.Recorder.Record(r.Context(), audit.Entry{
			EntityType: "BUILDING",
			EntityID:   buildingID,
			Action:     "REVOKE_BUILDING_ACCESS",
			Metadata: map[string]any{
				"user_id": userID,
			},
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

type setOwnerRequest struct {
	OwnerID string `json:"owner_id"`
	ActorID string `json:"actor_id"`
}

func (a *API) buildingOwner(w http.ResponseWriter, r *http.Request, buildingID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if a.deps.Admin == nil {
		writeError(w, r, http.StatusServiceUnavailable, "building admin unavailable")
		return
	}
	var req setOwnerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.deps.Admin.SetBuildingOwner(r.Context(), buildingID, req.OwnerID); err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.deps.Recorder.Record(r.Context(), audit.Entry{
		EntityType: "BUILDING",
		EntityID:   buildingID,
		Action:     "SET_BUILDING_OWNER",
		ActorID:    req.ActorID,
		Metadata: map[string]any{
			"owner_id": req.OwnerID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (a *API) buildingSummary(w http.ResponseWriter, r *http.Request, buildingID string) {
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
	sum, err := a.deps.Evaluator.BuildingSummary(r.Context(), buildingID, asOf)
	if err != nil {
		handleComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) buildingVendors(w http.ResponseWriter, r *http.Request, buildingID string) {
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
	vendors, err := a.deps.Evaluator.BuildingVendors(r.Context(), buildingID, asOf)
	if err != nil {
		handleComplianceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": vendors, "as_of": asOf})
}

func (a *API) buildingTenants(w http.ResponseWriter, r *http.Request, buildingID string) {
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
	tenants, err := a.deps.Evaluator.BuildingTenants(r.Context(), buildingID, asOf)
	if err != nil {
		handleComplianceError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []compliance.TenantStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tenants, "as_of": asOf})
}

func (a *API) buildingVisibility(w http.ResponseWriter, r *http.Request, buildingID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.deps.Resolver == nil || a.deps.Users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "permission resolver unavailable")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	user, err := a.deps.Users.FindUser(r.Context(), userID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	visible, err := a.deps.Resolver.CanViewBuilding(r.Context(), *user, buildingID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visible": visible})
}

// --- shared helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrBuildingHasCertificates),
		errors.Is(err, access.ErrBuildingHasTenants):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleComplianceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, compliance.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, compliance.ErrInvalidInput), errors.Is(err, compliance.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
