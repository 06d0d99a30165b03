package workflow

import (
	"fmt"
	"strings"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/ids"
	"assetflow.org/internal/rbac"
)

// MaintenanceType distinguishes planned service from breakdown repair.
type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceBreakdown  MaintenanceType = "breakdown"
)

// MaintenanceStatus is the record's workflow state.
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

// MaintenanceRecord tracks service work on one asset. While a record is
// InProgress the asset is held at UnderMaintenance; at most one open record
// may exist per asset.
type MaintenanceRecord struct {
	ID            string            `json:"id"`
	AssetID       string            `json:"asset_id"`
	Type          MaintenanceType   `json:"maintenance_type"`
	Priority      Priority          `json:"priority"`
	Status        MaintenanceStatus `json:"status"`
	Vendor        string            `json:"vendor,omitempty"`
	EstimatedCost int64             `json:"estimated_cost"`
	ScheduledFor  time.Time         `json:"scheduled_for,omitzero"`
	StartedAt     time.Time         `json:"started_at,omitzero"`
	CompletedAt   time.Time         `json:"completed_at,omitzero"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaintenanceParams carries the fields of a new record.
type MaintenanceParams struct {
	AssetID       string
	Type          MaintenanceType
	Priority      Priority
	Vendor        string
	EstimatedCost int64
	ScheduledFor  time.Time
}

// NewMaintenance schedules service work.
func NewMaintenance(role rbac.Role, p MaintenanceParams, now time.Time) (MaintenanceRecord, error) {
	if err := rbac.Authorize(role, rbac.OpScheduleMaintenance); err != nil {
		return MaintenanceRecord{}, err
	}
	if strings.TrimSpace(p.AssetID) == "" {
		return MaintenanceRecord{}, fmt.Errorf("%w: asset_id is required", asset.ErrValidation)
	}
	if p.Type != MaintenancePreventive && p.Type != MaintenanceBreakdown {
		return MaintenanceRecord{}, fmt.Errorf("%w: unknown maintenance type %q", asset.ErrValidation, p.Type)
	}
	if _, err := ParsePriority(string(p.Priority)); err != nil {
		return MaintenanceRecord{}, err
	}
	if p.EstimatedCost < 0 {
		return MaintenanceRecord{}, fmt.Errorf("%w: estimated_cost must be >= 0", asset.ErrValidation)
	}
	now = now.UTC()
	return MaintenanceRecord{
		ID:            ids.New(),
		AssetID:       strings.TrimSpace(p.AssetID),
		Type:          p.Type,
		Priority:      p.Priority,
		Status:        MaintenanceScheduled,
		Vendor:        strings.TrimSpace(p.Vendor),
		EstimatedCost: p.EstimatedCost,
		ScheduledFor:  p.ScheduledFor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Open reports whether the record still blocks other maintenance on the
// same asset.
func (m MaintenanceRecord) Open() bool {
	return m.Status == MaintenanceScheduled || m.Status == MaintenanceInProgress
}

// Start moves Scheduled -> InProgress. The caller places the asset under
// maintenance in the same transaction.
func (m *MaintenanceRecord) Start(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpStartMaintenance); err != nil {
		return err
	}
	if m.Status != MaintenanceScheduled {
		return fmt.Errorf("%w: cannot start maintenance from %s", asset.ErrInvalidTransition, m.Status)
	}
	m.Status = MaintenanceInProgress
	m.StartedAt = now.UTC()
	m.UpdatedAt = now.UTC()
	return nil
}

// Complete moves InProgress -> Completed. The caller restores the asset's
// resume status.
func (m *MaintenanceRecord) Complete(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpCompleteMaintenance); err != nil {
		return err
	}
	if m.Status != MaintenanceInProgress {
		return fmt.Errorf("%w: cannot complete maintenance from %s", asset.ErrInvalidTransition, m.Status)
	}
	m.Status = MaintenanceCompleted
	m.CompletedAt = now.UTC()
	m.UpdatedAt = now.UTC()
	return nil
}

// Cancel withdraws a record that has not started.
func (m *MaintenanceRecord) Cancel(role rbac.Role, now time.Time) error {
	if err := rbac.Authorize(role, rbac.OpCancelMaintenance); err != nil {
		return err
	}
	if m.Status != MaintenanceScheduled {
		return fmt.Errorf("%w: cannot cancel maintenance from %s", asset.ErrInvalidTransition, m.Status)
	}
	m.Status = MaintenanceCancelled
	m.UpdatedAt = now.UTC()
	return nil
}
