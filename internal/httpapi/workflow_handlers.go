package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/workflow"
)

// listCollection serves the read side of a workflow collection.
func (a *API) listCollection(w http.ResponseWriter, r *http.Request, fetch func(context.Context) (any, error)) {
	if err := a.authorizeRead(r, rbac.OpViewAssets); err != nil {
		handleCoreError(w, r, err)
		return
	}
	items, err := fetch(r.Context())
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"as_of": time.Now().UTC(),
	})
}

type createAllocationRequest struct {
	AssetID            string    `json:"asset_id"`
	AssetVersion       uint64    `json:"asset_version"`
	Assignee           string    `json:"assignee"`
	Department         string    `json:"department"`
	Location           string    `json:"location"`
	Type               string    `json:"allocation_type"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
}

type versionRequest struct {
	Version uint64 `json:"version"`
}

type decisionRequest struct {
	Version uint64 `json:"version"`
	Note    string `json:"note"`
}

type transferRequest struct {
	Version    uint64 `json:"version"`
	Assignee   string `json:"assignee"`
	Department string `json:"department"`
	Location   string `json:"location"`
}

// --- allocations ---

func (a *API) handleAllocationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCollection(w, r, func(ctx context.Context) (any, error) { return a.store.ListAllocations(ctx) })
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	var req createAllocationRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	cmd := lifecycle.AllocateAsset{
		Params: workflow.AllocationParams{
			AssetID:            req.AssetID,
			Assignee:           req.Assignee,
			Department:         req.Department,
			Location:           req.Location,
			Type:               workflow.AllocationType(strings.ToLower(strings.TrimSpace(req.Type))),
			ExpectedReturnDate: req.ExpectedReturnDate,
		},
		AssetVersion: req.AssetVersion,
	}
	a.apply(w, r, cmd, http.StatusCreated, "allocation.create", map[string]any{
		"asset_id": req.AssetID,
		"assignee": req.Assignee,
	})
}

func (a *API) handleAllocationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/allocations/")
	id, action, ok := splitResource(path)
	if !ok || r.Method != http.MethodPost {
		if !ok {
			writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
			return
		}
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	switch action {
	case "checkin":
		var req versionRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		cmd := lifecycle.CheckInAllocation{AllocationID: id, Version: req.Version}
		a.apply(w, r, cmd, http.StatusOK, "allocation.checkin", map[string]any{"allocation_id": id})
	case "transfer":
		var req transferRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		cmd := lifecycle.TransferAllocation{
			AllocationID: id,
			Version:      req.Version,
			Params: workflow.AllocationParams{
				Assignee:   req.Assignee,
				Department: req.Department,
				Location:   req.Location,
			},
		}
		a.apply(w, r, cmd, http.StatusOK, "allocation.transfer", map[string]any{
			"allocation_id": id,
			"assignee":      req.Assignee,
		})
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
	}
}

// --- maintenance ---

type createMaintenanceRequest struct {
	AssetID       string    `json:"asset_id"`
	Type          string    `json:"maintenance_type"`
	Priority      string    `json:"priority"`
	Vendor        string    `json:"vendor"`
	EstimatedCost int64     `json:"estimated_cost"`
	ScheduledFor  time.Time `json:"scheduled_for"`
}

func (a *API) handleMaintenanceCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCollection(w, r, func(ctx context.Context) (any, error) { return a.store.ListMaintenance(ctx) })
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	var req createMaintenanceRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	cmd := lifecycle.ScheduleMaintenance{Params: workflow.MaintenanceParams{
		AssetID:       req.AssetID,
		Type:          workflow.MaintenanceType(strings.ToLower(strings.TrimSpace(req.Type))),
		Priority:      workflow.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		Vendor:        req.Vendor,
		EstimatedCost: req.EstimatedCost,
		ScheduledFor:  req.ScheduledFor,
	}}
	a.apply(w, r, cmd, http.StatusCreated, "maintenance.schedule", map[string]any{
		"asset_id": req.AssetID,
	})
}

func (a *API) handleMaintenanceResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/maintenance/")
	id, action, ok := splitResource(path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req versionRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var cmd lifecycle.Command
	switch action {
	case "start":
		cmd = lifecycle.StartMaintenance{MaintenanceID: id, Version: req.Version}
	case "complete":
		cmd = lifecycle.CompleteMaintenance{MaintenanceID: id, Version: req.Version}
	case "cancel":
		cmd = lifecycle.CancelMaintenance{MaintenanceID: id, Version: req.Version}
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	a.apply(w, r, cmd, http.StatusOK, "maintenance."+action, map[string]any{"maintenance_id": id})
}

// --- procurements ---

type createProcurementRequest struct {
	Title         string `json:"title"`
	Category      string `json:"category"`
	Priority      string `json:"priority"`
	EstimatedCost int64  `json:"estimated_cost"`
	RequestedBy   string `json:"requested_by"`
}

func (a *API) handleProcurementsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCollection(w, r, func(ctx context.Context) (any, error) { return a.store.ListProcurements(ctx) })
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	var req createProcurementRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	cmd := lifecycle.CreateProcurement{Params: workflow.ProcurementParams{
		Title:         req.Title,
		Category:      asset.Category(strings.ToLower(strings.TrimSpace(req.Category))),
		Priority:      workflow.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		EstimatedCost: req.EstimatedCost,
		RequestedBy:   req.RequestedBy,
	}}
	a.apply(w, r, cmd, http.StatusCreated, "procurement.create", map[string]any{
		"title": req.Title,
	})
}

func (a *API) handleProcurementResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/procurements/")
	id, action, ok := splitResource(path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req decisionRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var cmd lifecycle.Command
	switch action {
	case "approve":
		cmd = lifecycle.ApproveProcurement{RequestID: id, Version: req.Version}
	case "reject":
		cmd = lifecycle.RejectProcurement{RequestID: id, Version: req.Version, Note: req.Note}
	case "start":
		cmd = lifecycle.MarkInProcurement{RequestID: id, Version: req.Version}
	case "complete":
		cmd = lifecycle.CompleteProcurement{RequestID: id, Version: req.Version}
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	a.apply(w, r, cmd, http.StatusOK, "procurement."+action, map[string]any{"request_id": id})
}

// --- disposals ---

type createDisposalRequest struct {
	AssetID        string `json:"asset_id"`
	AssetVersion   uint64 `json:"asset_version"`
	Reason         string `json:"reason"`
	EstimatedValue int64  `json:"estimated_value"`
	SalvageValue   int64  `json:"salvage_value"`
	Method         string `json:"disposal_method"`
}

func (a *API) handleDisposalsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCollection(w, r, func(ctx context.Context) (any, error) { return a.store.ListDisposals(ctx) })
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	var req createDisposalRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	cmd := lifecycle.InitiateDisposal{
		Params: workflow.DisposalParams{
			AssetID:        req.AssetID,
			Reason:         req.Reason,
			EstimatedValue: req.EstimatedValue,
			SalvageValue:   req.SalvageValue,
			Method:         workflow.DisposalMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		},
		AssetVersion: req.AssetVersion,
	}
	a.apply(w, r, cmd, http.StatusCreated, "disposal.initiate", map[string]any{
		"asset_id": req.AssetID,
		"reason":   req.Reason,
	})
}

func (a *API) handleDisposalResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/disposals/")
	id, action, ok := splitResource(path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req decisionRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	var cmd lifecycle.Command
	switch action {
	case "approve":
		cmd = lifecycle.ApproveDisposal{RequestID: id, Version: req.Version}
	case "reject":
		cmd = lifecycle.RejectDisposal{RequestID: id, Version: req.Version, Note: req.Note}
	case "complete":
		cmd = lifecycle.CompleteDisposal{RequestID: id, Version: req.Version}
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	a.apply(w, r, cmd, http.StatusOK, "disposal."+action, map[string]any{"request_id": id})
}
