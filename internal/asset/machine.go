package asset

import (
	"fmt"
	"strings"
	"time"

	"assetflow.org/internal/ids"
	"assetflow.org/internal/rbac"
)

// NewParams carries the fields required to register an asset.
type NewParams struct {
	Name       string
	Category   Category
	Basis      FinancialBasis
	Location   string
	Department string
}

// New registers an asset in the initial Active status. The caller's role
// must hold the CreateAsset capability. CurrentBookValue starts at the
// purchase cost; the orchestrator recomputes it immediately after creation.
func New(role rbac.Role, p NewParams, now time.Time) (Asset, error) {
	if err := rbac.Authorize(role, rbac.OpCreateAsset); err != nil {
		return Asset{}, err
	}
	if strings.TrimSpace(p.Name) == "" {
		return Asset{}, fmt.Errorf("%w: asset name is required", ErrValidation)
	}
	if _, ok := categories[p.Category]; !ok {
		return Asset{}, fmt.Errorf("%w: unknown category %q", ErrValidation, p.Category)
	}
	if err := p.Basis.Validate(); err != nil {
		return Asset{}, err
	}
	now = now.UTC()
	return Asset{
		ID:               ids.New(),
		Name:             strings.TrimSpace(p.Name),
		Category:         p.Category,
		Status:           StatusActive,
		PurchaseCost:     p.Basis.PurchaseCost,
		SalvageValue:     p.Basis.SalvageValue,
		PurchaseDate:     p.Basis.PurchaseDate,
		UsefulLifeMonths: p.Basis.UsefulLifeMonths,
		Method:           p.Basis.Method,
		CurrentBookValue: p.Basis.PurchaseCost,
		Location:         strings.TrimSpace(p.Location),
		Department:       strings.TrimSpace(p.Department),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// guard rejects any mutation of a retired asset before the per-transition
// checks run.
func (a *Asset) guard(role rbac.Role, op rbac.Operation) error {
	if err := rbac.Authorize(role, op); err != nil {
		return err
	}
	if a.Status == StatusRetired {
		return fmt.Errorf("%w: %s", ErrRetired, a.ID)
	}
	return nil
}

// Allocate moves Active -> Allocated and records the assignee.
func (a *Asset) Allocate(role rbac.Role, assignee string, now time.Time) error {
	if err := a.guard(role, rbac.OpAllocateAsset); err != nil {
		return err
	}
	if a.Status == StatusAllocated {
		return fmt.Errorf("%w: %s", ErrAlreadyAllocated, a.ID)
	}
	if a.Status != StatusActive {
		return fmt.Errorf("%w: cannot allocate from %s", ErrInvalidTransition, a.Status)
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return fmt.Errorf("%w: assignee is required", ErrValidation)
	}
	a.Status = StatusAllocated
	a.AssignedTo = assignee
	a.UpdatedAt = now.UTC()
	return nil
}

// CheckIn moves Allocated -> Active and clears the assignee.
func (a *Asset) CheckIn(role rbac.Role, now time.Time) error {
	if err := a.guard(role, rbac.OpCheckInAllocation); err != nil {
		return err
	}
	if a.Status != StatusAllocated {
		return fmt.Errorf("%w: cannot check in from %s", ErrInvalidTransition, a.Status)
	}
	a.Status = StatusActive
	a.AssignedTo = ""
	a.UpdatedAt = now.UTC()
	return nil
}

// Reassign hands an allocated asset to a new assignee without passing
// through Active. Used by the permanent allocation transfer flow.
func (a *Asset) Reassign(role rbac.Role, assignee string, now time.Time) error {
	if err := a.guard(role, rbac.OpTransferAllocation); err != nil {
		return err
	}
	if a.Status != StatusAllocated {
		return fmt.Errorf("%w: cannot transfer from %s", ErrInvalidTransition, a.Status)
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return fmt.Errorf("%w: assignee is required", ErrValidation)
	}
	a.AssignedTo = assignee
	a.UpdatedAt = now.UTC()
	return nil
}

// StartMaintenance moves Active|Allocated -> UnderMaintenance and remembers
// the status to restore once maintenance completes.
func (a *Asset) StartMaintenance(role rbac.Role, now time.Time) error {
	if err := a.guard(role, rbac.OpStartMaintenance); err != nil {
		return err
	}
	switch a.Status {
	case StatusActive, StatusAllocated:
	default:
		return fmt.Errorf("%w: cannot start maintenance from %s", ErrInvalidTransition, a.Status)
	}
	a.MaintenanceResume = a.Status
	a.Status = StatusUnderMaintenance
	a.UpdatedAt = now.UTC()
	return nil
}

// CompleteMaintenance restores the pre-maintenance status. An allocation
// paused by maintenance resumes as Allocated, not Active.
func (a *Asset) CompleteMaintenance(role rbac.Role, now time.Time) error {
	if err := a.guard(role, rbac.OpCompleteMaintenance); err != nil {
		return err
	}
	if a.Status != StatusUnderMaintenance {
		return fmt.Errorf("%w: cannot complete maintenance from %s", ErrInvalidTransition, a.Status)
	}
	resume := a.MaintenanceResume
	if resume == "" {
		resume = StatusActive
	}
	a.Status = resume
	a.MaintenanceResume = ""
	a.UpdatedAt = now.UTC()
	return nil
}

// BeginDisposal moves Active|Allocated|UnderMaintenance -> PendingDisposal
// and remembers the status to restore if the disposal request is rejected.
func (a *Asset) BeginDisposal(role rbac.Role, now time.Time) error {
	if err := a.guard(role, rbac.OpInitiateDisposal); err != nil {
		return err
	}
	if a.Status == StatusPendingDisposal {
		return fmt.Errorf("%w: %s", ErrDisposalPending, a.ID)
	}
	switch a.Status {
	case StatusActive, StatusAllocated, StatusUnderMaintenance:
	default:
		return fmt.Errorf("%w: cannot initiate disposal from %s", ErrInvalidTransition, a.Status)
	}
	a.DisposalResume = a.Status
	a.Status = StatusPendingDisposal
	a.UpdatedAt = now.UTC()
	return nil
}

// CancelDisposal reverts PendingDisposal to the pre-disposal resume status.
func (a *Asset) CancelDisposal(role rbac.Role, now time.Time) error {
	if err := a.guard(role, rbac.OpRejectDisposal); err != nil {
		return err
	}
	if a.Status != StatusPendingDisposal {
		return fmt.Errorf("%w: cannot cancel disposal from %s", ErrInvalidTransition, a.Status)
	}
	resume := a.DisposalResume
	if resume == "" {
		resume = StatusActive
	}
	a.Status = resume
	a.DisposalResume = ""
	a.UpdatedAt = now.UTC()
	return nil
}

// Retire moves PendingDisposal -> Retired. Irreversible.
func (a *Asset) Retire(role rbac.Role, now time.Time) error {
	if err := a.guard(role, rbac.OpRetireAsset); err != nil {
		return err
	}
	if a.Status != StatusPendingDisposal {
		return fmt.Errorf("%w: cannot retire from %s", ErrInvalidTransition, a.Status)
	}
	a.Status = StatusRetired
	a.DisposalResume = ""
	a.MaintenanceResume = ""
	a.AssignedTo = ""
	a.UpdatedAt = now.UTC()
	return nil
}

// SetFinancialBasis replaces the depreciable basis. The caller must follow
// up with a valuation recompute; the orchestrator does both in one step.
func (a *Asset) SetFinancialBasis(role rbac.Role, b FinancialBasis, now time.Time) error {
	if err := a.guard(role, rbac.OpUpdateAssetFinancials); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	a.PurchaseCost = b.PurchaseCost
	a.SalvageValue = b.SalvageValue
	a.PurchaseDate = b.PurchaseDate
	a.UsefulLifeMonths = b.UsefulLifeMonths
	a.Method = b.Method
	a.UpdatedAt = now.UTC()
	return nil
}
