package workflow

import (
	"fmt"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/ids"
	"assetflow.org/internal/rbac"
)

// ProcurementStatus is the request's workflow state.
type ProcurementStatus string

const (
	ProcurementPendingApproval ProcurementStatus = "pending_approval"
	ProcurementApproved        ProcurementStatus = "approved"
	ProcurementInProgress      ProcurementStatus = "in_procurement"
	ProcurementCompleted       ProcurementStatus = "completed"
	ProcurementRejected        ProcurementStatus = "rejected"
)

// ProcurementRequest asks for a new asset to be purchased. No asset exists
// until the request completes; registration of the delivered asset is a
// separate CreateAsset command.
type ProcurementRequest struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Category      asset.Category    `json:"category"`
	Priority      Priority          `json:"priority"`
	EstimatedCost int64             `json:"estimated_cost"`
	RequestedBy   string            `json:"requested_by"`
	Status        ProcurementStatus `json:"status"`
	DecisionNote  string            `json:"decision_note,omitempty"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcurementParams carries the fields of a new request.
type ProcurementParams struct {
	Title         string
	Category      asset.Category
	Priority      Priority
	EstimatedCost int64
	RequestedBy   string
}

// NewProcurement opens a request in PendingApproval.
func NewProcurement(role rbac.Role, p ProcurementParams, now time.Time) (ProcurementRequest, error) {
	if err := rbac.Authorize(role, rbac.OpCreateProcurement); err != nil {
		return ProcurementRequest{}, err
	}
	if strings.TrimSpace(p.Title) == "" {
		return ProcurementRequest{}, fmt.Errorf("%w: title is required", asset.ErrValidation)
	}
	if p.EstimatedCost < 0 {
		return ProcurementRequest{}, fmt.Errorf("%w: estimated_cost must be >= 0", asset.ErrValidation)
	}
	if _, err := asset.ParseCategory(string(p.Category)); err != nil {
		return ProcurementRequest{}, err
	}
	if _, err := ParsePriority(string(p.Priority)); err != nil {
		return ProcurementRequest{}, err
	}
	if strings.TrimSpace(p.RequestedBy) == "" {
		return ProcurementRequest{}, fmt.Errorf("%w: requested_by is required", asset.ErrValidation)
	}
	now = now.UTC()
	return ProcurementRequest{
		ID:            ids.New(),
		Title:         strings.TrimSpace(p.Title),
		Category:      p.Category,
		Priority:      p.Priority,
		EstimatedCost: p.EstimatedCost,
		RequestedBy:   strings.TrimSpace(p.RequestedBy),
		Status:        ProcurementPendingApproval,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Approve moves PendingApproval -> Approved.
func (p *ProcurementRequest) Approve(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpApproveProcurement); err != nil {
		return err
	}
	if p.Status != ProcurementPendingApproval {
		return fmt.Errorf("%w: cannot approve procurement from %s", asset.ErrInvalidTransition, p.Status)
	}
	p.Status = ProcurementApproved
	p.UpdatedAt = now.UTC()
	return nil
}

// Reject closes the request from PendingApproval or Approved. Once ordering
// has started the request is cancelled or completed, never rejected.
func (p *ProcurementRequest) Reject(role rbac.Role, note string, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpRejectProcurement); err != nil {
		return err
	}
	switch p.Status {
	case ProcurementPendingApproval, ProcurementApproved:
	default:
		return fmt.Errorf("%w: cannot reject procurement from %s", asset.ErrInvalidTransition, p.Status)
	}
	p.Status = ProcurementRejected
	p.DecisionNote = strings.TrimSpace(note)
	p.UpdatedAt = now.UTC()
	return nil
}

// Start moves Approved -> InProcurement.
func (p *ProcurementRequest) Start(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpMarkInProcurement); err != nil {
		return err
	}
	if p.Status != ProcurementApproved {
		return fmt.Errorf("%w: cannot start procurement from %s", asset.ErrInvalidTransition, p.Status)
	}
	p.Status = ProcurementInProgress
	p.UpdatedAt = now.UTC()
	return nil
}

// Complete moves InProcurement -> Completed. Terminal.
func (p *ProcurementRequest) Complete(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpCompleteProcurement); err != nil {
		return err
	}
	if p.Status != ProcurementInProgress {
		return fmt.Errorf("%w: cannot complete procurement from %s", asset.ErrInvalidTransition, p.Status)
	}
	p.Status = ProcurementCompleted
	p.UpdatedAt = now.UTC()
	return nil
}
