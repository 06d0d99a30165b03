// Package lifecycle coordinates the cross-entity effects of asset
// transitions. Engine.Apply is the single entry point external collaborators
// call: it authorizes, loads, transitions, revalues when the financial basis
// changed, and returns everything that must be persisted atomically.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/notify"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/valuation"
	"assetflow.org/internal/workflow"
)

// Engine drives all lifecycle commands through the state machines. It holds
// no state of its own and performs no I/O beyond the injected Store.
type Engine struct {
	store Store
	now   func() time.Time
}

// Option configures Engine.
type Option func(*Engine)

// WithClock overrides the engine clock. Intended for tests and the batch
// revaluation job, which computes as of a close date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Engine over the persistence collaborator.
func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("lifecycle store is required")
	}
	e := &Engine{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Apply executes one command on behalf of the actor role. Business-rule
// failures come back as the typed sentinel errors; infrastructure failures
// from the store pass through unmodified. The whole command runs inside one
// store transaction: on error nothing is persisted, even when a later save
// of a multi-entity command is the one that failed.
func (e *Engine) Apply(ctx context.Context, cmd Command, actor rbac.Role) (Result, error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: command is required", asset.ErrValidation)
	}
	if err := rbac.Authorize(actor, cmd.Op()); err != nil {
		return Result{}, err
	}
	now := e.now()

	var res Result
	err := e.store.WithinTx(ctx, func(s Store) error {
		tx := &Engine{store: s, now: e.now}
		var err error
		res, err = tx.dispatch(ctx, cmd, actor, now)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, cmd Command, actor rbac.Role, now time.Time) (Result, error) {
	switch c := cmd.(type) {
	case CreateAsset:
		return e.createAsset(ctx, c, actor, now)
	case UpdateAssetFinancials:
		return e.updateFinancials(ctx, c, actor, now)
	case RecomputeValuation:
		return e.recomputeValuation(ctx, c, now)
	case AllocateAsset:
		return e.allocateAsset(ctx, c, actor, now)
	case CheckInAllocation:
		return e.checkInAllocation(ctx, c, actor, now)
	case TransferAllocation:
		return e.transferAllocation(ctx, c, actor, now)
	case ScheduleMaintenance:
		return e.scheduleMaintenance(ctx, c, actor, now)
	case StartMaintenance:
		return e.startMaintenance(ctx, c, actor, now)
	case CompleteMaintenance:
		return e.completeMaintenance(ctx, c, actor, now)
	case CancelMaintenance:
		return e.cancelMaintenance(ctx, c, actor, now)
	case CreateProcurement:
		return e.createProcurement(ctx, c, actor, now)
	case ApproveProcurement:
		return e.approveProcurement(ctx, c, actor, now)
	case RejectProcurement:
		return e.rejectProcurement(ctx, c, actor, now)
	case MarkInProcurement:
		return e.markInProcurement(ctx, c, actor, now)
	case CompleteProcurement:
		return e.completeProcurement(ctx, c, actor, now)
	case InitiateDisposal:
		return e.initiateDisposal(ctx, c, actor, now)
	case ApproveDisposal:
		return e.approveDisposal(ctx, c, actor, now)
	case RejectDisposal:
		return e.rejectDisposal(ctx, c, actor, now)
	case CompleteDisposal:
		return e.completeDisposal(ctx, c, actor, now)
	default:
		return Result{}, fmt.Errorf("%w: unsupported command %T", asset.ErrValidation, cmd)
	}
}

func (e *Engine) createAsset(ctx context.Context, c CreateAsset, actor rbac.Role, now time.Time) (Result, error) {
	a, err := asset.New(actor, c.Params, now)
	if err != nil {
		return Result{}, err
	}
	v, err := valuation.Compute(a, now)
	if err != nil {
		return Result{}, err
	}
	a.CurrentBookValue = v.BookValue
	saved, err := e.store.SaveAsset(ctx, a, 0)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:    []asset.Asset{saved},
		Valuation: &v,
		Notifications: []notify.Intent{{
			RecipientRole: rbac.RoleAssetManager,
			Event:         "asset.registered",
			Payload:       map[string]string{"asset_id": saved.ID, "name": saved.Name},
			Timestamp:     now,
		}},
	}, nil
}

func (e *Engine) updateFinancials(ctx context.Context, c UpdateAssetFinancials, actor rbac.Role, now time.Time) (Result, error) {
	a, err := e.store.LoadAsset(ctx, c.AssetID)
	if err != nil {
		return Result{}, err
	}
	prior := a.CurrentBookValue
	if err := a.SetFinancialBasis(actor, c.Basis, now); err != nil {
		return Result{}, err
	}
	v, err := valuation.Compute(a, now)
	if err != nil {
		return Result{}, err
	}
	a.CurrentBookValue = v.BookValue
	saved, err := e.store.SaveAsset(ctx, a, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:    []asset.Asset{saved},
		Valuation: &v,
		Notifications: []notify.Intent{{
			RecipientRole: rbac.RoleFinance,
			Event:         "asset.valuation.updated",
			Payload: map[string]string{
				"asset_id":         saved.ID,
				"prior_book_value": strconv.FormatInt(prior, 10),
				"book_value":       strconv.FormatInt(saved.CurrentBookValue, 10),
			},
			Timestamp: now,
		}},
	}, nil
}

func (e *Engine) recomputeValuation(ctx context.Context, c RecomputeValuation, now time.Time) (Result, error) {
	a, err := e.store.LoadAsset(ctx, c.AssetID)
	if err != nil {
		return Result{}, err
	}
	if a.Status == asset.StatusRetired {
		return Result{}, fmt.Errorf("%w: %s", asset.ErrRetired, a.ID)
	}
	asOf := c.AsOf
	if asOf.IsZero() {
		asOf = now
	}
	v, err := valuation.Compute(a, asOf)
	if err != nil {
		return Result{}, err
	}
	prior := a.CurrentBookValue
	if v.BookValue == prior {
		// Idempotent: nothing to persist.
		return Result{Valuation: &v}, nil
	}
	a.CurrentBookValue = v.BookValue
	a.UpdatedAt = now
	saved, err := e.store.SaveAsset(ctx, a, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:    []asset.Asset{saved},
		Valuation: &v,
		Notifications: []notify.Intent{{
			RecipientRole: rbac.RoleFinance,
			Event:         "asset.valuation.updated",
			Payload: map[string]string{
				"asset_id":         saved.ID,
				"prior_book_value": strconv.FormatInt(prior, 10),
				"book_value":       strconv.FormatInt(saved.CurrentBookValue, 10),
			},
			Timestamp: now,
		}},
	}, nil
}

func (e *Engine) allocateAsset(ctx context.Context, c AllocateAsset, actor rbac.Role, now time.Time) (Result, error) {
	a, err := e.store.LoadAsset(ctx, c.Params.AssetID)
	if err != nil {
		return Result{}, err
	}
	if _, exists, err := e.store.ActiveAllocationForAsset(ctx, a.ID); err != nil {
		return Result{}, err
	} else if exists {
		return Result{}, fmt.Errorf("%w: %s", asset.ErrAlreadyAllocated, a.ID)
	}
	rec, err := workflow.NewAllocation(actor, c.Params, now)
	if err != nil {
		return Result{}, err
	}
	if err := a.Allocate(actor, rec.Assignee, now); err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, c.AssetVersion)
	if err != nil {
		return Result{}, err
	}
	savedRec, err := e.store.SaveAllocation(ctx, rec, 0)
	if err != nil {
		return Result{}, err
	}
	payload := map[string]string{"asset_id": a.ID, "assignee": savedRec.Assignee}
	if !savedRec.ExpectedReturnDate.IsZero() {
		payload["expected_return_date"] = savedRec.ExpectedReturnDate.Format(time.DateOnly)
	}
	return Result{
		Assets:      []asset.Asset{savedAsset},
		Allocations: []workflow.AllocationRecord{savedRec},
		Notifications: []notify.Intent{{
			RecipientID: savedRec.Assignee,
			Event:       "allocation.assigned",
			Payload:     payload,
			Timestamp:   now,
		}},
	}, nil
}

func (e *Engine) checkInAllocation(ctx context.Context, c CheckInAllocation, actor rbac.Role, now time.Time) (Result, error) {
	rec, err := e.store.LoadAllocation(ctx, c.AllocationID)
	if err != nil {
		return Result{}, err
	}
	a, err := e.store.LoadAsset(ctx, rec.AssetID)
	if err != nil {
		return Result{}, err
	}
	if err := rec.CheckIn(actor, now); err != nil {
		return Result{}, err
	}
	if err := a.CheckIn(actor, now); err != nil {
		return Result{}, err
	}
	savedRec, err := e.store.SaveAllocation(ctx, rec, c.Version)
	if err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, a.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:      []asset.Asset{savedAsset},
		Allocations: []workflow.AllocationRecord{savedRec},
		Notifications: []notify.Intent{{
			RecipientID: savedRec.Assignee,
			Event:       "allocation.checked_in",
			Payload:     map[string]string{"asset_id": a.ID},
			Timestamp:   now,
		}},
	}, nil
}

func (e *Engine) transferAllocation(ctx context.Context, c TransferAllocation, actor rbac.Role, now time.Time) (Result, error) {
	rec, err := e.store.LoadAllocation(ctx, c.AllocationID)
	if err != nil {
		return Result{}, err
	}
	a, err := e.store.LoadAsset(ctx, rec.AssetID)
	if err != nil {
		return Result{}, err
	}
	next, err := rec.Transfer(actor, c.Params, now)
	if err != nil {
		return Result{}, err
	}
	if err := a.Reassign(actor, next.Assignee, now); err != nil {
		return Result{}, err
	}
	savedOld, err := e.store.SaveAllocation(ctx, rec, c.Version)
	if err != nil {
		return Result{}, err
	}
	savedNext, err := e.store.SaveAllocation(ctx, next, 0)
	if err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, a.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:      []asset.Asset{savedAsset},
		Allocations: []workflow.AllocationRecord{savedOld, savedNext},
		Notifications: []notify.Intent{{
			RecipientID: savedNext.Assignee,
			Event:       "allocation.transferred",
			Payload:     map[string]string{"asset_id": a.ID, "from": savedOld.Assignee},
			Timestamp:   now,
		}},
	}, nil
}

func (e *Engine) scheduleMaintenance(ctx context.Context, c ScheduleMaintenance, actor rbac.Role, now time.Time) (Result, error) {
	a, err := e.store.LoadAsset(ctx, c.Params.AssetID)
	if err != nil {
		return Result{}, err
	}
	if a.Status == asset.StatusRetired {
		return Result{}, fmt.Errorf("%w: %s", asset.ErrRetired, a.ID)
	}
	if _, open, err := e.store.OpenMaintenanceForAsset(ctx, a.ID); err != nil {
		return Result{}, err
	} else if open {
		return Result{}, fmt.Errorf("%w: maintenance already open for %s", asset.ErrInvalidTransition, a.ID)
	}
	rec, err := workflow.NewMaintenance(actor, c.Params, now)
	if err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveMaintenance(ctx, rec, 0)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Maintenance: []workflow.MaintenanceRecord{saved},
		Notifications: []notify.Intent{{
			RecipientRole: rbac.RoleMaintenanceManager,
			Event:         "maintenance.scheduled",
			Payload:       map[string]string{"asset_id": a.ID, "maintenance_id": saved.ID},
			Timestamp:     now,
		}},
	}, nil
}

func (e *Engine) startMaintenance(ctx context.Context, c StartMaintenance, actor rbac.Role, now time.Time) (Result, error) {
	rec, err := e.store.LoadMaintenance(ctx, c.MaintenanceID)
	if err != nil {
		return Result{}, err
	}
	a, err := e.store.LoadAsset(ctx, rec.AssetID)
	if err != nil {
		return Result{}, err
	}
	if err := rec.Start(actor, now); err != nil {
		return Result{}, err
	}
	if err := a.StartMaintenance(actor, now); err != nil {
		return Result{}, err
	}
	savedRec, err := e.store.SaveMaintenance(ctx, rec, c.Version)
	if err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, a.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:      []asset.Asset{savedAsset},
		Maintenance: []workflow.MaintenanceRecord{savedRec},
	}, nil
}

func (e *Engine) completeMaintenance(ctx context.Context, c CompleteMaintenance, actor rbac.Role, now time.Time) (Result, error) {
	rec, err := e.store.LoadMaintenance(ctx, c.MaintenanceID)
	if err != nil {
		return Result{}, err
	}
	a, err := e.store.LoadAsset(ctx, rec.AssetID)
	if err != nil {
		return Result{}, err
	}
	if err := rec.Complete(actor, now); err != nil {
		return Result{}, err
	}
	if err := a.CompleteMaintenance(actor, now); err != nil {
		return Result{}, err
	}
	savedRec, err := e.store.SaveMaintenance(ctx, rec, c.Version)
	if err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, a.Version)
	if err != nil {
		return Result{}, err
	}
	var intents []notify.Intent
	if savedAsset.Status == asset.StatusAllocated && savedAsset.AssignedTo != "" {
		intents = append(intents, notify.Intent{
			RecipientID: savedAsset.AssignedTo,
			Event:       "maintenance.completed",
			Payload:     map[string]string{"asset_id": a.ID},
			Timestamp:   now,
		})
	}
	return Result{
		Assets:        []asset.Asset{savedAsset},
		Maintenance:   []workflow.MaintenanceRecord{savedRec},
		Notifications: intents,
	}, nil
}

func (e *Engine) cancelMaintenance(ctx context.Context, c CancelMaintenance, actor rbac.Role, now time.Time) (Result, error) {
	rec, err := e.store.LoadMaintenance(ctx, c.MaintenanceID)
	if err != nil {
		return Result{}, err
	}
	if err := rec.Cancel(actor, now); err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveMaintenance(ctx, rec, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{Maintenance: []workflow.MaintenanceRecord{saved}}, nil
}

func (e *Engine) createProcurement(ctx context.Context, c CreateProcurement, actor rbac.Role, now time.Time) (Result, error) {
	req, err := workflow.NewProcurement(actor, c.Params, now)
	if err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveProcurement(ctx, req, 0)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Procurements: []workflow.ProcurementRequest{saved},
		Notifications: []notify.Intent{{
			RecipientRole: rbac.RoleDepartmentHead,
			Event:         "procurement.approval_requested",
			Payload:       map[string]string{"request_id": saved.ID, "title": saved.Title},
			Timestamp:     now,
		}},
	}, nil
}

func (e *Engine) approveProcurement(ctx context.Context, c ApproveProcurement, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadProcurement(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Approve(actor, now); err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveProcurement(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Procurements: []workflow.ProcurementRequest{saved},
		Notifications: []notify.Intent{{
			RecipientID: saved.RequestedBy,
			Event:       "procurement.approved",
			Payload:     map[string]string{"request_id": saved.ID},
			Timestamp:   now,
		}},
	}, nil
}

func (e *Engine) rejectProcurement(ctx context.Context, c RejectProcurement, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadProcurement(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Reject(actor, c.Note, now); err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveProcurement(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Procurements: []workflow.ProcurementRequest{saved},
		Notifications: []notify.Intent{{
			RecipientID: saved.RequestedBy,
			Event:       "procurement.rejected",
			Payload:     map[string]string{"request_id": saved.ID, "note": saved.DecisionNote},
			Timestamp:   now,
		}},
	}, nil
}

func (e *Engine) markInProcurement(ctx context.Context, c MarkInProcurement, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadProcurement(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Start(actor, now); err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveProcurement(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{Procurements: []workflow.ProcurementRequest{saved}}, nil
}

func (e *Engine) completeProcurement(ctx context.Context, c CompleteProcurement, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadProcurement(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Complete(actor, now); err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveProcurement(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Procurements: []workflow.ProcurementRequest{saved},
		Notifications: []notify.Intent{{
			RecipientID: saved.RequestedBy,
			Event:       "procurement.completed",
			Payload:     map[string]string{"request_id": saved.ID},
			Timestamp:   now,
		}},
	}, nil
}

func (e *Engine) initiateDisposal(ctx context.Context, c InitiateDisposal, actor rbac.Role, now time.Time) (Result, error) {
	a, err := e.store.LoadAsset(ctx, c.Params.AssetID)
	if err != nil {
		return Result{}, err
	}
	if _, open, err := e.store.OpenDisposalForAsset(ctx, a.ID); err != nil {
		return Result{}, err
	} else if open {
		return Result{}, fmt.Errorf("%w: %s", asset.ErrDisposalPending, a.ID)
	}
	req, err := workflow.NewDisposal(actor, c.Params, now)
	if err != nil {
		return Result{}, err
	}
	if err := a.BeginDisposal(actor, now); err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, c.AssetVersion)
	if err != nil {
		return Result{}, err
	}
	savedReq, err := e.store.SaveDisposal(ctx, req, 0)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:    []asset.Asset{savedAsset},
		Disposals: []workflow.DisposalRequest{savedReq},
		Notifications: []notify.Intent{{
			RecipientRole: rbac.RoleDisposalOfficer,
			Event:         "disposal.approval_requested",
			Payload:       map[string]string{"asset_id": a.ID, "request_id": savedReq.ID},
			Timestamp:     now,
		}},
	}, nil
}

func (e *Engine) approveDisposal(ctx context.Context, c ApproveDisposal, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadDisposal(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Approve(actor, now); err != nil {
		return Result{}, err
	}
	saved, err := e.store.SaveDisposal(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{Disposals: []workflow.DisposalRequest{saved}}, nil
}

func (e *Engine) rejectDisposal(ctx context.Context, c RejectDisposal, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadDisposal(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	a, err := e.store.LoadAsset(ctx, req.AssetID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Reject(actor, c.Note, now); err != nil {
		return Result{}, err
	}
	if err := a.CancelDisposal(actor, now); err != nil {
		return Result{}, err
	}
	savedReq, err := e.store.SaveDisposal(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, a.Version)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Assets:    []asset.Asset{savedAsset},
		Disposals: []workflow.DisposalRequest{savedReq},
	}, nil
}

func (e *Engine) completeDisposal(ctx context.Context, c CompleteDisposal, actor rbac.Role, now time.Time) (Result, error) {
	req, err := e.store.LoadDisposal(ctx, c.RequestID)
	if err != nil {
		return Result{}, err
	}
	a, err := e.store.LoadAsset(ctx, req.AssetID)
	if err != nil {
		return Result{}, err
	}
	if err := req.Complete(actor, now); err != nil {
		return Result{}, err
	}
	if err := a.Retire(actor, now); err != nil {
		return Result{}, err
	}

	res := Result{}
	// Retirement closes any allocation still open for the asset.
	if rec, exists, err := e.store.ActiveAllocationForAsset(ctx, a.ID); err != nil {
		return Result{}, err
	} else if exists {
		rec.Close(now)
		savedRec, err := e.store.SaveAllocation(ctx, rec, rec.Version)
		if err != nil {
			return Result{}, err
		}
		res.Allocations = []workflow.AllocationRecord{savedRec}
	}

	savedReq, err := e.store.SaveDisposal(ctx, req, c.Version)
	if err != nil {
		return Result{}, err
	}
	savedAsset, err := e.store.SaveAsset(ctx, a, a.Version)
	if err != nil {
		return Result{}, err
	}
	res.Assets = []asset.Asset{savedAsset}
	res.Disposals = []workflow.DisposalRequest{savedReq}
	res.Notifications = []notify.Intent{{
		RecipientRole: rbac.RoleAssetManager,
		Event:         "asset.retired",
		Payload:       map[string]string{"asset_id": a.ID, "request_id": savedReq.ID},
		Timestamp:     now,
	}}
	return res, nil
}
