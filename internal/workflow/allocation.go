package workflow

import (
	"fmt"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/ids"
	"assetflow.org/internal/rbac"
)

// AllocationType distinguishes permanent assignments from loans.
type AllocationType string

const (
	AllocationPermanent AllocationType = "permanent"
	AllocationTemporary AllocationType = "temporary"
)

// AllocationStatus is the record's workflow state.
type AllocationStatus string

const (
	AllocationActive   AllocationStatus = "active"
	AllocationReturned AllocationStatus = "returned"
)

// AllocationRecord assigns one asset to an employee or team. An asset has
// at most one active allocation at a time; a returned record is immutable
// history.
type AllocationRecord struct {
	ID                 string           `json:"id"`
	AssetID            string           `json:"asset_id"`
	Assignee           string           `json:"assignee"`
	Department         string           `json:"department,omitempty"`
	Location           string           `json:"location,omitempty"`
	Type               AllocationType   `json:"allocation_type"`
	AssignDate         time.Time        `json:"assign_date"`
	ExpectedReturnDate time.Time        `json:"expected_return_date,omitzero"`
	Status             AllocationStatus `json:"status"`
	ReturnedAt         time.Time        `json:"returned_at,omitzero"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllocationParams carries the fields of a new allocation.
type AllocationParams struct {
	AssetID            string
	Assignee           string
	Department         string
	Location           string
	Type               AllocationType
	ExpectedReturnDate time.Time
}

// NewAllocation creates a record directly in Active status; there is no
// pending stage. ExpectedReturnDate is required for temporary allocations
// and rejected for permanent ones.
func NewAllocation(role rbac.Role, p AllocationParams, now time.Time) (AllocationRecord, error) {
	if err := rbac.Authorize(role, rbac.OpAllocateAsset); err != nil {
		return AllocationRecord{}, err
	}
	rec, err := buildAllocation(p, now)
	if err != nil {
		return AllocationRecord{}, err
	}
	return rec, nil
}

func buildAllocation(p AllocationParams, now time.Time) (AllocationRecord, error) {
	if strings.TrimSpace(p.AssetID) == "" {
		return AllocationRecord{}, fmt.Errorf("%w: asset_id is required", asset.ErrValidation)
	}
	if strings.TrimSpace(p.Assignee) == "" {
		return AllocationRecord{}, fmt.Errorf("%w: assignee is required", asset.ErrValidation)
	}
	switch p.Type {
	case AllocationPermanent:
		if !p.ExpectedReturnDate.IsZero() {
			return AllocationRecord{}, fmt.Errorf("%w: permanent allocations have no expected return date", asset.ErrValidation)
		}
	case AllocationTemporary:
		if p.ExpectedReturnDate.IsZero() {
			return AllocationRecord{}, fmt.Errorf("%w: expected_return_date is required for temporary allocations", asset.ErrValidation)
		}
	default:
		return AllocationRecord{}, fmt.Errorf("%w: unknown allocation type %q", asset.ErrValidation, p.Type)
	}
	now = now.UTC()
	return AllocationRecord{
		ID:                 ids.New(),
		AssetID:            strings.TrimSpace(p.AssetID),
		Assignee:           strings.TrimSpace(p.Assignee),
		Department:         strings.TrimSpace(p.Department),
		Location:           strings.TrimSpace(p.Location),
		Type:               p.Type,
		AssignDate:         now,
		ExpectedReturnDate: p.ExpectedReturnDate,
		Status:             AllocationActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// CheckIn returns a temporary allocation. Permanent allocations end only
// through Transfer or asset retirement.
func (r *AllocationRecord) CheckIn(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpCheckInAllocation); err != nil {
		return err
	}
	if r.Status != AllocationActive {
		return fmt.Errorf("%w: allocation already returned", asset.ErrInvalidTransition)
	}
	if r.Type == AllocationPermanent {
		return fmt.Errorf("%w: permanent allocation requires a transfer", asset.ErrInvalidTransition)
	}
	r.close(now)
	return nil
}

// Transfer atomically ends this allocation and opens a new one for the next
// assignee, preserving the allocation type.
func (r *AllocationRecord) Transfer(role rbac.Role, p AllocationParams, now time.Time) (AllocationRecord, error) {
	if err := rbac.Authorize(role, rbac.OpTransferAllocation); err != nil {
		return AllocationRecord{}, err
	}
	if r.Status != AllocationActive {
		return AllocationRecord{}, fmt.Errorf("%w: allocation already returned", asset.ErrInvalidTransition)
	}
	p.AssetID = r.AssetID
	if p.Type == "" {
		p.Type = r.Type
		p.ExpectedReturnDate = r.ExpectedReturnDate
	}
	next, err := buildAllocation(p, now)
	if err != nil {
		return AllocationRecord{}, err
	}
	r.close(now)
	return next, nil
}

// Close ends the allocation as a side effect of the asset leaving service
// (retirement). Authorization happened on the driving command.
func (r *AllocationRecord) Close(now time.Time) {
	if r.Status == AllocationActive {
		r.close(now)
	}
}

func (r *AllocationRecord) close(now time.Time) {
	r.Status = AllocationReturned
	r.ReturnedAt = now.UTC()
	r.UpdatedAt = now.UTC()
}
