package workflow

import (
	"errors"
	"testing"
	"time"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/rbac"
)

var now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func TestProcurementHappyPath(t *testing.T) {
	p, err := NewProcurement(rbac.RoleEmployee, ProcurementParams{
		Title:         "10 laptops",
		Category:      asset.CategoryITEquipment,
		Priority:      PriorityHigh,
		EstimatedCost: 12_000_000,
		RequestedBy:   "emp-9",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != ProcurementPendingApproval {
		t.Fatalf("initial status = %s", p.Status)
	}
	if err := p.Approve(rbac.RoleDepartmentHead, now); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(rbac.RoleProcurementOfficer, now); err != nil {
		t.Fatal(err)
	}
	if err := p.Complete(rbac.RoleProcurementOfficer, now); err != nil {
		t.Fatal(err)
	}
	if p.Status != ProcurementCompleted {
		t.Fatalf("final status = %s", p.Status)
	}
}

func TestProcurementRejectStages(t *testing.T) {
	p, _ := NewProcurement(rbac.RoleAdmin, ProcurementParams{
		Title: "chairs", Category: asset.CategoryFurniture, Priority: PriorityLow,
		EstimatedCost: 100, RequestedBy: "emp-1",
	}, now)
	if err := p.Reject(rbac.RoleDepartmentHead, "budget freeze", now); err != nil {
		t.Fatal(err)
	}
	if p.Status != ProcurementRejected || p.DecisionNote != "budget freeze" {
		t.Fatalf("rejected: %s %q", p.Status, p.DecisionNote)
	}
	// Terminal: nothing further.
	if err := p.Approve(rbac.RoleAdmin, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := p.Reject(rbac.RoleAdmin, "", now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRejectFromInProcurementFails(t *testing.T) {
	p, _ := NewProcurement(rbac.RoleAdmin, ProcurementParams{
		Title: "monitors", Category: asset.CategoryITEquipment, Priority: PriorityHigh,
		EstimatedCost: 100, RequestedBy: "emp-2",
	}, now)
	if err := p.Approve(rbac.RoleDepartmentHead, now); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(rbac.RoleProcurementOfficer, now); err != nil {
		t.Fatal(err)
	}
	// Ordering has started: the decision window is closed.
	if err := p.Reject(rbac.RoleDepartmentHead, "too late", now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if p.Status != ProcurementInProgress {
		t.Fatalf("status = %s", p.Status)
	}
}

func TestProcurementSkippingStagesRejected(t *testing.T) {
	p, _ := NewProcurement(rbac.RoleAdmin, ProcurementParams{
		Title: "truck", Category: asset.CategoryTransport, Priority: PriorityMedium,
		EstimatedCost: 100, RequestedBy: "emp-1",
	}, now)
	if err := p.Start(rbac.RoleAdmin, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("start before approval: %v", err)
	}
	if err := p.Complete(rbac.RoleAdmin, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("complete before approval: %v", err)
	}
	if p.Status != ProcurementPendingApproval {
		t.Fatal("invalid transitions mutated the record")
	}
}

func TestProcurementDeniedRoleLeavesRecordUnchanged(t *testing.T) {
	p, _ := NewProcurement(rbac.RoleAdmin, ProcurementParams{
		Title: "desks", Category: asset.CategoryFurniture, Priority: PriorityLow,
		EstimatedCost: 100, RequestedBy: "emp-1",
	}, now)
	before := p
	if err := p.Approve(rbac.RoleProcurementOfficer, now); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
	if p != before {
		t.Fatal("denied command mutated the record")
	}
}

func TestDisposalLifecycle(t *testing.T) {
	d, err := NewDisposal(rbac.RoleDisposalOfficer, DisposalParams{
		AssetID: "A-1", Reason: "end of life", EstimatedValue: 50_000,
		SalvageValue: 20_000, Method: DisposalScrap,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Open() {
		t.Fatal("new disposal should be open")
	}
	if err := d.Complete(rbac.RoleDisposalOfficer, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("complete before approval: %v", err)
	}
	if err := d.Approve(rbac.RoleDisposalOfficer, now); err != nil {
		t.Fatal(err)
	}
	if err := d.Complete(rbac.RoleDisposalOfficer, now); err != nil {
		t.Fatal(err)
	}
	if d.Open() || d.Status != DisposalCompleted {
		t.Fatalf("final: %s", d.Status)
	}
}

func TestDisposalRejectFromApproved(t *testing.T) {
	d, _ := NewDisposal(rbac.RoleAdmin, DisposalParams{
		AssetID: "A-1", Reason: "obsolete", Method: DisposalSale,
	}, now)
	_ = d.Approve(rbac.RoleAdmin, now)
	if err := d.Reject(rbac.RoleDisposalOfficer, "resale value too low", now); err != nil {
		t.Fatal(err)
	}
	if d.Status != DisposalRejected {
		t.Fatalf("status = %s", d.Status)
	}
}

func TestAllocationTemporaryRequiresReturnDate(t *testing.T) {
	_, err := NewAllocation(rbac.RoleAssetManager, AllocationParams{
		AssetID: "A-1", Assignee: "emp-2", Type: AllocationTemporary,
	}, now)
	if !errors.Is(err, asset.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	_, err = NewAllocation(rbac.RoleAssetManager, AllocationParams{
		AssetID: "A-1", Assignee: "emp-2", Type: AllocationPermanent,
		ExpectedReturnDate: now.AddDate(0, 1, 0),
	}, now)
	if !errors.Is(err, asset.ErrValidation) {
		t.Fatalf("permanent with return date: %v", err)
	}
}

func TestAllocationCheckIn(t *testing.T) {
	r, err := NewAllocation(rbac.RoleAssetManager, AllocationParams{
		AssetID: "A-1", Assignee: "emp-2", Type: AllocationTemporary,
		ExpectedReturnDate: now.AddDate(0, 3, 0),
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.CheckIn(rbac.RoleAssetManager, now); err != nil {
		t.Fatal(err)
	}
	if r.Status != AllocationReturned || r.ReturnedAt.IsZero() {
		t.Fatalf("after check-in: %+v", r)
	}
	// Immutable once returned.
	if err := r.CheckIn(rbac.RoleAssetManager, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPermanentAllocationNeedsTransfer(t *testing.T) {
	r, _ := NewAllocation(rbac.RoleAdmin, AllocationParams{
		AssetID: "A-1", Assignee: "emp-2", Type: AllocationPermanent,
	}, now)
	if err := r.CheckIn(rbac.RoleAdmin, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	next, err := r.Transfer(rbac.RoleAssetManager, AllocationParams{Assignee: "emp-3"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != AllocationReturned {
		t.Fatal("old record not returned")
	}
	if next.Status != AllocationActive || next.Assignee != "emp-3" || next.AssetID != "A-1" {
		t.Fatalf("transferred record: %+v", next)
	}
	if next.Type != AllocationPermanent {
		t.Fatalf("transfer changed type to %s", next.Type)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	m, err := NewMaintenance(rbac.RoleMaintenanceManager, MaintenanceParams{
		AssetID: "A-1", Type: MaintenancePreventive, Priority: PriorityMedium,
		Vendor: "Acme Service", EstimatedCost: 25_000,
		ScheduledFor: now.AddDate(0, 0, 7),
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Open() || m.Status != MaintenanceScheduled {
		t.Fatalf("initial: %s", m.Status)
	}
	if err := m.Complete(rbac.RoleMaintenanceManager, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("complete before start: %v", err)
	}
	if err := m.Start(rbac.RoleMaintenanceManager, now); err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(rbac.RoleMaintenanceManager, now); !errors.Is(err, asset.ErrInvalidTransition) {
		t.Fatalf("cancel after start: %v", err)
	}
	if err := m.Complete(rbac.RoleMaintenanceManager, now); err != nil {
		t.Fatal(err)
	}
	if m.Open() || m.CompletedAt.IsZero() {
		t.Fatalf("final: %+v", m)
	}
}

func TestMaintenanceCancelBeforeStart(t *testing.T) {
	m, _ := NewMaintenance(rbac.RoleAdmin, MaintenanceParams{
		AssetID: "A-1", Type: MaintenanceBreakdown, Priority: PriorityCritical,
	}, now)
	if err := m.Cancel(rbac.RoleMaintenanceManager, now); err != nil {
		t.Fatal(err)
	}
	if m.Status != MaintenanceCancelled || m.Open() {
		t.Fatalf("status = %s", m.Status)
	}
}
