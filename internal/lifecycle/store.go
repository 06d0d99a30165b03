package lifecycle

import (
	"context"
	"errors"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/workflow"
)

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("lifecycle: not found")
	// ErrConcurrentModification indicates a stale version on save. The
	// caller retries with a freshly loaded entity; the engine performs no
	// locking itself.
	ErrConcurrentModification = errors.New("lifecycle: concurrent modification")
)

// Store is the persistence collaborator. Each Save compares the expected
// version against the stored one and returns ErrConcurrentModification on
// mismatch; an expected version of zero creates the entity. The engine runs
// every Apply inside WithinTx, so all derived entities persist atomically or
// not at all.
type Store interface {
	// WithinTx runs fn against a transactional view of the store. An error
	// from fn rolls back every save made through that view.
	WithinTx(ctx context.Context, fn func(Store) error) error

	LoadAsset(ctx context.Context, id string) (asset.Asset, error)
	SaveAsset(ctx context.Context, a asset.Asset, expectedVersion uint64) (asset.Asset, error)
	// ListAssetsForRevaluation returns every non-retired asset for the
	// periodic recompute batch.
	ListAssetsForRevaluation(ctx context.Context) ([]asset.Asset, error)

	LoadAllocation(ctx context.Context, id string) (workflow.AllocationRecord, error)
	SaveAllocation(ctx context.Context, rec workflow.AllocationRecord, expectedVersion uint64) (workflow.AllocationRecord, error)
	// ActiveAllocationForAsset enforces the one-active-allocation
	// uniqueness invariant.
	ActiveAllocationForAsset(ctx context.Context, assetID string) (workflow.AllocationRecord, bool, error)

	LoadMaintenance(ctx context.Context, id string) (workflow.MaintenanceRecord, error)
	SaveMaintenance(ctx context.Context, rec workflow.MaintenanceRecord, expectedVersion uint64) (workflow.MaintenanceRecord, error)
	// OpenMaintenanceForAsset enforces the one-open-record invariant.
	OpenMaintenanceForAsset(ctx context.Context, assetID string) (workflow.MaintenanceRecord, bool, error)

	LoadProcurement(ctx context.Context, id string) (workflow.ProcurementRequest, error)
	SaveProcurement(ctx context.Context, req workflow.ProcurementRequest, expectedVersion uint64) (workflow.ProcurementRequest, error)

	LoadDisposal(ctx context.Context, id string) (workflow.DisposalRequest, error)
	SaveDisposal(ctx context.Context, req workflow.DisposalRequest, expectedVersion uint64) (workflow.DisposalRequest, error)
	// OpenDisposalForAsset enforces the one-open-request invariant.
	OpenDisposalForAsset(ctx context.Context, assetID string) (workflow.DisposalRequest, bool, error)
}
