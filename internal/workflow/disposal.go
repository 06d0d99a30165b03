package workflow

import (
	"fmt"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/ids"
	"assetflow.org/internal/rbac"
)

// DisposalStatus is the disposal request's workflow state.
type DisposalStatus string

const (
	DisposalPendingApproval DisposalStatus = "pending_approval"
	DisposalApproved        DisposalStatus = "approved"
	DisposalCompleted       DisposalStatus = "completed"
	DisposalRejected        DisposalStatus = "rejected"
)

// DisposalMethod describes how the asset leaves service.
type DisposalMethod string

const (
	DisposalSale     DisposalMethod = "sale"
	DisposalScrap    DisposalMethod = "scrap"
	DisposalDonation DisposalMethod = "donation"
	DisposalTradeIn  DisposalMethod = "trade_in"
)

var disposalMethods = map[DisposalMethod]struct{}{
	DisposalSale:     {},
	DisposalScrap:    {},
	DisposalDonation: {},
	DisposalTradeIn:  {},
}

// DisposalRequest tracks the approval trail for retiring one asset. At most
// one open request may exist per asset; completion retires the asset and
// rejection restores its pre-disposal status.
type DisposalRequest struct {
	ID             string         `json:"id"`
	AssetID        string         `json:"asset_id"`
	Reason         string         `json:"reason"`
	EstimatedValue int64          `json:"estimated_value"`
	SalvageValue   int64          `json:"salvage_value"`
	Method         DisposalMethod `json:"disposal_method"`
	Status         DisposalStatus `json:"status"`
	DecisionNote   string         `json:"decision_note,omitempty"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisposalParams carries the fields of a new disposal request.
type DisposalParams struct {
	AssetID        string
	Reason         string
	EstimatedValue int64
	SalvageValue   int64
	Method         DisposalMethod
}

// NewDisposal opens a request in PendingApproval.
func NewDisposal(role rbac.Role, p DisposalParams, now time.Time) (DisposalRequest, error) {
	if err := rbac.Authorize(role, rbac.OpInitiateDisposal); err != nil {
		return DisposalRequest{}, err
	}
	if strings.TrimSpace(p.AssetID) == "" {
		return DisposalRequest{}, fmt.Errorf("%w: asset_id is required", asset.ErrValidation)
	}
	if strings.TrimSpace(p.Reason) == "" {
		return DisposalRequest{}, fmt.Errorf("%w: reason is required", asset.ErrValidation)
	}
	if p.EstimatedValue < 0 || p.SalvageValue < 0 {
		return DisposalRequest{}, fmt.Errorf("%w: values must be >= 0", asset.ErrValidation)
	}
	if _, ok := disposalMethods[p.Method]; !ok {
		return DisposalRequest{}, fmt.Errorf("%w: unknown disposal method %q", asset.ErrValidation, p.Method)
	}
	now = now.UTC()
	return DisposalRequest{
		ID:             ids.New(),
		AssetID:        strings.TrimSpace(p.AssetID),
		Reason:         strings.TrimSpace(p.Reason),
		EstimatedValue: p.EstimatedValue,
		SalvageValue:   p.SalvageValue,
		Method:         p.Method,
		Status:         DisposalPendingApproval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Open reports whether the request still blocks other disposals of the same
// asset.
func (d DisposalRequest) Open() bool {
	return d.Status == DisposalPendingApproval || d.Status == DisposalApproved
}

// Approve moves PendingApproval -> Approved.
func (d *DisposalRequest) Approve(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpApproveDisposal); err != nil {
		return err
	}
	if d.Status != DisposalPendingApproval {
		return fmt.Errorf("%w: cannot approve disposal from %s", asset.ErrInvalidTransition, d.Status)
	}
	d.Status = DisposalApproved
	d.UpdatedAt = now.UTC()
	return nil
}

// Reject closes the request from PendingApproval or Approved. The caller
// restores the asset's resume status.
func (d *DisposalRequest) Reject(role rbac.Role, note string, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpRejectDisposal); err != nil {
		return err
	}
	if !d.Open() {
		return fmt.Errorf("%w: cannot reject disposal from %s", asset.ErrInvalidTransition, d.Status)
	}
	d.Status = DisposalRejected
	d.DecisionNote = strings.TrimSpace(note)
	d.UpdatedAt = now.UTC()
	return nil
}

// Complete moves Approved -> Completed. The caller retires the asset in the
// same transaction.
func (d *DisposalRequest) Complete(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpRetireAsset); err != nil {
		return err
	}
	if d.Status != DisposalApproved {
		return fmt.Errorf("%w: cannot complete disposal from %s", asset.ErrInvalidTransition, d.Status)
	}
	d.Status = DisposalCompleted
	d.UpdatedAt = now.UTC()
	return nil
}
