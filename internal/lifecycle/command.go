package lifecycle

import (
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/notify"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/valuation"
	"assetflow.org/internal/workflow"
)

// Command is one lifecycle transition request. Commands that reference an
// existing entity carry the version the caller loaded; a stale version
// surfaces as ErrConcurrentModification on save.
type Command interface {
	Op() rbac.Operation
}

// Result is the bundle of entities changed by one command plus the
// notification intents for the delivery collaborator.
type Result struct {
	Assets       []asset.Asset                `json:"assets,omitempty"`
	Allocations  []workflow.AllocationRecord  `json:"allocations,omitempty"`
	Maintenance  []workflow.MaintenanceRecord `json:"maintenance,omitempty"`
	Procurements []workflow.ProcurementRequest `json:"procurements,omitempty"`
	Disposals    []workflow.DisposalRequest   `json:"disposals,omitempty"`
	Valuation    *valuation.Valuation         `json:"valuation,omitempty"`

	Notifications []notify.Intent `json:"notifications,omitempty"`
}

// CreateAsset registers a new asset and computes its opening book value.
type CreateAsset struct {
	Params asset.NewParams
}

func (CreateAsset) Op() rbac.Operation { return rbac.OpCreateAsset }

// UpdateAssetFinancials replaces the depreciable basis and recomputes the
// cached book value.
type UpdateAssetFinancials struct {
	AssetID string
	Version uint64
	Basis   asset.FinancialBasis
}

func (UpdateAssetFinancials) Op() rbac.Operation { return rbac.OpUpdateAssetFinancials }

// RecomputeValuation refreshes the cached book value as of a date.
type RecomputeValuation struct {
	AssetID string
	Version uint64
	AsOf    time.Time
}

func (RecomputeValuation) Op() rbac.Operation { return rbac.OpRecomputeValuation }

// AllocateAsset assigns an asset and creates the allocation record.
type AllocateAsset struct {
	Params       workflow.AllocationParams
	AssetVersion uint64
}

func (AllocateAsset) Op() rbac.Operation { return rbac.OpAllocateAsset }

// CheckInAllocation returns a temporary allocation and frees the asset.
type CheckInAllocation struct {
	AllocationID string
	Version      uint64
}

func (CheckInAllocation) Op() rbac.Operation { return rbac.OpCheckInAllocation }

// TransferAllocation reassigns an allocated asset to a new assignee,
// closing the old record and opening a new one atomically.
type TransferAllocation struct {
	AllocationID string
	Version      uint64
	Params       workflow.AllocationParams
}

func (TransferAllocation) Op() rbac.Operation { return rbac.OpTransferAllocation }

// ScheduleMaintenance opens a maintenance record in Scheduled.
type ScheduleMaintenance struct {
	Params workflow.MaintenanceParams
}

func (ScheduleMaintenance) Op() rbac.Operation { return rbac.OpScheduleMaintenance }

// StartMaintenance begins the work and places the asset under maintenance.
type StartMaintenance struct {
	MaintenanceID string
	Version       uint64
}

func (StartMaintenance) Op() rbac.Operation { return rbac.OpStartMaintenance }

// CompleteMaintenance finishes the work and restores the asset's resume
// status.
type CompleteMaintenance struct {
	MaintenanceID string
	Version       uint64
}

func (CompleteMaintenance) Op() rbac.Operation { return rbac.OpCompleteMaintenance }

// CancelMaintenance withdraws a record that has not started.
type CancelMaintenance struct {
	MaintenanceID string
	Version       uint64
}

func (CancelMaintenance) Op() rbac.Operation { return rbac.OpCancelMaintenance }

// CreateProcurement opens a purchase request.
type CreateProcurement struct {
	Params workflow.ProcurementParams
}

func (CreateProcurement) Op() rbac.Operation { return rbac.OpCreateProcurement }

// ApproveProcurement moves the request to Approved.
type ApproveProcurement struct {
	RequestID string
	Version   uint64
}

func (ApproveProcurement) Op() rbac.Operation { return rbac.OpApproveProcurement }

// RejectProcurement closes the request.
type RejectProcurement struct {
	RequestID string
	Version   uint64
	Note      string
}

func (RejectProcurement) Op() rbac.Operation { return rbac.OpRejectProcurement }

// MarkInProcurement moves the request into active procurement.
type MarkInProcurement struct {
	RequestID string
	Version   uint64
}

func (MarkInProcurement) Op() rbac.Operation { return rbac.OpMarkInProcurement }

// CompleteProcurement closes the request as fulfilled.
type CompleteProcurement struct {
	RequestID string
	Version   uint64
}

func (CompleteProcurement) Op() rbac.Operation { return rbac.OpCompleteProcurement }

// InitiateDisposal opens a disposal request and parks the asset at
// PendingDisposal.
type InitiateDisposal struct {
	Params       workflow.DisposalParams
	AssetVersion uint64
}

func (InitiateDisposal) Op() rbac.Operation { return rbac.OpInitiateDisposal }

// ApproveDisposal moves the request to Approved.
type ApproveDisposal struct {
	RequestID string
	Version   uint64
}

func (ApproveDisposal) Op() rbac.Operation { return rbac.OpApproveDisposal }

// RejectDisposal closes the request and restores the asset's pre-disposal
// status.
type RejectDisposal struct {
	RequestID string
	Version   uint64
	Note      string
}

func (RejectDisposal) Op() rbac.Operation { return rbac.OpRejectDisposal }

// CompleteDisposal closes the request and retires the asset. Irreversible.
type CompleteDisposal struct {
	RequestID string
	Version   uint64
}

func (CompleteDisposal) Op() rbac.Operation { return rbac.OpRetireAsset }
