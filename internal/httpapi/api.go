// Package httpapi is the HTTP surface over the lifecycle engine. Routing is
// plain net/http ServeMux with manual path dispatch; every mutation funnels
// through API.apply so metrics, audit and notification fan-out happen in one
// place.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/audit"
	"assetflow.org/internal/auth"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/notify"
	"assetflow.org/internal/obs"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/workflow"
)

// Store is what the read endpoints need on top of the engine's writes.
type Store interface {
	lifecycle.Store
	ListAssets(ctx context.Context) ([]asset.Asset, error)
	ListAllocations(ctx context.Context) ([]workflow.AllocationRecord, error)
	ListMaintenance(ctx context.Context) ([]workflow.MaintenanceRecord, error)
	ListProcurements(ctx context.Context) ([]workflow.ProcurementRequest, error)
	ListDisposals(ctx context.Context) ([]workflow.DisposalRequest, error)
}

// ReadyProbe checks the persistence dependency for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Limits tunes the protective middleware. Zero values keep the defaults.
type Limits struct {
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	engine     *lifecycle.Engine
	store      Store
	stream     *notify.Stream
	readyProbe ReadyProbe
	version    string
	limits     Limits
}

// SetLimits overrides the default middleware limits. Call before Handler.
func (a *API) SetLimits(l Limits) {
	if l.RateBurst > 0 {
		a.limits.RateBurst = l.RateBurst
	}
	if l.RatePerSec > 0 {
		a.limits.RatePerSec = l.RatePerSec
	}
	if l.MaxBodyBytes > 0 {
		a.limits.MaxBodyBytes = l.MaxBodyBytes
	}
}

func New(engine *lifecycle.Engine, store Store, stream *notify.Stream, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		engine:     engine,
		store:      store,
		stream:     stream,
		readyProbe: rp,
		version:    version,
		limits:     Limits{RateBurst: 100, RatePerSec: 50, MaxBodyBytes: 1 << 20},
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/assets", a.handleAssetsCollection)
	a.mux.HandleFunc("/v1/assets/", a.handleAssetResource)
	a.mux.HandleFunc("/v1/allocations", a.handleAllocationsCollection)
	a.mux.HandleFunc("/v1/allocations/", a.handleAllocationResource)
	a.mux.HandleFunc("/v1/maintenance", a.handleMaintenanceCollection)
	a.mux.HandleFunc("/v1/maintenance/", a.handleMaintenanceResource)
	a.mux.HandleFunc("/v1/procurements", a.handleProcurementsCollection)
	a.mux.HandleFunc("/v1/procurements/", a.handleProcurementResource)
	a.mux.HandleFunc("/v1/disposals", a.handleDisposalsCollection)
	a.mux.HandleFunc("/v1/disposals/", a.handleDisposalResource)
	a.mux.HandleFunc("/v1/notifications/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.limits.MaxBodyBytes)
	h = RateLimit(h, a.limits.RateBurst, a.limits.RatePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = obs.Instrument(h)
	h = RequestID(h)
	return h
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "assetflow-api",
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
		"name":    "assetflow-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- command plumbing ---

// actorRole resolves the caller's role: token context first, the X-Role
// header when token auth is not configured.
func (a *API) actorRole(r *http.Request) (rbac.Role, error) {
	if role, ok := auth.RoleFromContext(r.Context()); ok {
		return role, nil
	}
	if raw := strings.TrimSpace(r.Header.Get("X-Role")); raw != "" {
		return rbac.ParseRole(raw)
	}
	return "", errors.New("missing actor role")
}

// apply runs one lifecycle command and handles metrics, audit and the
// notification fan-out uniformly.
func (a *API) apply(w http.ResponseWriter, r *http.Request, cmd lifecycle.Command, status int, auditEvent string, auditFields map[string]any) {
	role, err := a.actorRole(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		return
	}

	res, err := a.engine.Apply(r.Context(), cmd, role)
	if err != nil {
		obs.ObserveCommand(string(cmd.Op()), outcome(err))
		handleCoreError(w, r, err)
		return
	}
	obs.ObserveCommand(string(cmd.Op()), "ok")

	if auditEvent != "" {
		_ = audit.LogEvent(r.Context(), auditEvent, auditFields)
	}
	if a.stream != nil {
		a.stream.PublishAll(res.Notifications)
	}
	writeJSON(w, status, res)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, rbac.ErrInsufficientRole):
		return "denied"
	case errors.Is(err, lifecycle.ErrConcurrentModification),
		errors.Is(err, asset.ErrInvalidTransition),
		errors.Is(err, asset.ErrRetired),
		errors.Is(err, asset.ErrAlreadyAllocated),
		errors.Is(err, asset.ErrDisposalPending):
		return "conflict"
	default:
		return "error"
	}
}

// handleCoreError maps domain sentinels to stable machine-readable codes.
func handleCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrInsufficientRole):
		writeError(w, r, http.StatusForbidden, "INSUFFICIENT_ROLE", err.Error())
	case errors.Is(err, asset.ErrRetired):
		writeError(w, r, http.StatusConflict, "ASSET_RETIRED", err.Error())
	case errors.Is(err, asset.ErrAlreadyAllocated):
		writeError(w, r, http.StatusConflict, "ALREADY_ALLOCATED", err.Error())
	case errors.Is(err, asset.ErrDisposalPending):
		writeError(w, r, http.StatusConflict, "DISPOSAL_ALREADY_PENDING", err.Error())
	case errors.Is(err, asset.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, "INVALID_STATE_TRANSITION", err.Error())
	case errors.Is(err, asset.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, lifecycle.ErrConcurrentModification):
		writeError(w, r, http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error())
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, errCode, msg string) {
	payload := map[string]any{
		"error": msg,
		"code":  errCode,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, a.limits.MaxBodyBytes)
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

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}
