package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/valuation"
)

type createAssetRequest struct {
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	PurchaseCost     int64     `json:"purchase_cost"`
	SalvageValue     int64     `json:"salvage_value"`
	PurchaseDate     time.Time `json:"purchase_date"`
	UsefulLifeMonths int       `json:"useful_life_months"`
	Method           string    `json:"depreciation_method"`
	Location         string    `json:"location"`
	Department       string    `json:"department"`
}

type updateFinancialsRequest struct {
	Version          uint64    `json:"version"`
	PurchaseCost     int64     `json:"purchase_cost"`
	SalvageValue     int64     `json:"salvage_value"`
	PurchaseDate     time.Time `json:"purchase_date"`
	UsefulLifeMonths int       `json:"useful_life_months"`
	Method           string    `json:"depreciation_method"`
}

func (a *API) handleAssetsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAsset(w, r)
	case http.MethodGet:
		a.listAssets(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAssetResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/assets/")
	id, action, ok := splitResource(path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getAsset(w, r, id)
	case "valuation":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getValuation(w, r, id)
	case "financials":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.updateFinancials(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
	}
}

func (a *API) createAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	cmd := lifecycle.CreateAsset{Params: asset.NewParams{
		Name:     req.Name,
		Category: asset.Category(strings.ToLower(strings.TrimSpace(req.Category))),
		Basis: asset.FinancialBasis{
			PurchaseCost:     req.PurchaseCost,
			SalvageValue:     req.SalvageValue,
			PurchaseDate:     req.PurchaseDate,
			UsefulLifeMonths: req.UsefulLifeMonths,
			Method:           asset.Method(strings.ToLower(strings.TrimSpace(req.Method))),
		},
		Location:   req.Location,
		Department: req.Department,
	}}
	a.apply(w, r, cmd, http.StatusCreated, "asset.create", map[string]any{
		"name":     req.Name,
		"category": req.Category,
	})
}

func (a *API) listAssets(w http.ResponseWriter, r *http.Request) {
	a.listCollection(w, r, func(ctx context.Context) (any, error) { return a.store.ListAssets(ctx) })
}

func (a *API) getAsset(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.authorizeRead(r, rbac.OpViewAssets); err != nil {
		handleCoreError(w, r, err)
		return
	}
	got, err := a.store.LoadAsset(r.Context(), id)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (a *API) getValuation(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.authorizeRead(r, rbac.OpViewFinancials); err != nil {
		handleCoreError(w, r, err)
		return
	}
	got, err := a.store.LoadAsset(r.Context(), id)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	asOf := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parsed, err = time.Parse(time.DateOnly, raw)
		}
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "as_of must be RFC 3339 or YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	v, err := valuation.Compute(got, asOf)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) updateFinancials(w http.ResponseWriter, r *http.Request, id string) {
	var req updateFinancialsRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	cmd := lifecycle.UpdateAssetFinancials{
		AssetID: id,
		Version: req.Version,
		Basis: asset.FinancialBasis{
			PurchaseCost:     req.PurchaseCost,
			SalvageValue:     req.SalvageValue,
			PurchaseDate:     req.PurchaseDate,
			UsefulLifeMonths: req.UsefulLifeMonths,
			Method:           asset.Method(strings.ToLower(strings.TrimSpace(req.Method))),
		},
	}
	a.apply(w, r, cmd, http.StatusOK, "asset.financials.update", map[string]any{
		"asset_id":      id,
		"purchase_cost": strconv.FormatInt(req.PurchaseCost, 10),
	})
}

func (a *API) authorizeRead(r *http.Request, op rbac.Operation) error {
	role, err := a.actorRole(r)
	if err != nil {
		// Treat unauthenticated reads as insufficient role.
		return rbac.Authorize("", op)
	}
	return rbac.Authorize(role, op)
}

// splitResource parses "<id>" or "<id>/<action>"; anything deeper is not a
// resource.
func splitResource(path string) (id, action string, ok bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "", "", false
	}
	parts := strings.Split(path, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", false
		}
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}
