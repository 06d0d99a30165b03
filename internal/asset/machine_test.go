package asset

import (
	"errors"
	"testing"
	"time"

	"assetflow.org/internal/rbac"
)

var now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func validParams() NewParams {
	return NewParams{
		Name:     "ThinkPad X1",
		Category: CategoryITEquipment,
		Basis: FinancialBasis{
			PurchaseCost:     1_200_000,
			SalvageValue:     100_000,
			PurchaseDate:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			UsefulLifeMonths: 36,
			Method:           StraightLine,
		},
		Location:   "HQ",
		Department: "Engineering",
	}
}

func TestNewAsset(t *testing.T) {
	a, err := New(rbac.RoleAssetManager, validParams(), now)
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusActive {
		t.Fatalf("initial status = %s", a.Status)
	}
	if a.ID == "" {
		t.Fatal("missing id")
	}
	if a.CurrentBookValue != a.PurchaseCost {
		t.Fatalf("initial book value = %d", a.CurrentBookValue)
	}
}

func TestNewAssetDenied(t *testing.T) {
	if _, err := New(rbac.RoleViewer, validParams(), now); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}

func TestNewAssetValidation(t *testing.T) {
	p := validParams()
	p.Basis.SalvageValue = p.Basis.PurchaseCost + 1
	if _, err := New(rbac.RoleAdmin, p, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	p = validParams()
	p.Name = "  "
	if _, err := New(rbac.RoleAdmin, p, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAllocateAndCheckIn(t *testing.T) {
	a, _ := New(rbac.RoleAssetManager, validParams(), now)
	if err := a.Allocate(rbac.RoleAssetManager, "emp-7", now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusAllocated || a.AssignedTo != "emp-7" {
		t.Fatalf("after allocate: %s %s", a.Status, a.AssignedTo)
	}
	if err := a.Allocate(rbac.RoleAssetManager, "emp-8", now); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("expected ErrAlreadyAllocated, got %v", err)
	}
	if err := a.CheckIn(rbac.RoleAssetManager, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusActive || a.AssignedTo != "" {
		t.Fatalf("after check-in: %s %q", a.Status, a.AssignedTo)
	}
	if err := a.CheckIn(rbac.RoleAssetManager, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMaintenanceResumesAllocated(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	if err := a.Allocate(rbac.RoleAdmin, "emp-7", now); err != nil {
		t.Fatal(err)
	}
	if err := a.StartMaintenance(rbac.RoleMaintenanceManager, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusUnderMaintenance || a.MaintenanceResume != StatusAllocated {
		t.Fatalf("under maintenance: %s resume=%s", a.Status, a.MaintenanceResume)
	}
	if err := a.StartMaintenance(rbac.RoleMaintenanceManager, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := a.CompleteMaintenance(rbac.RoleMaintenanceManager, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusAllocated {
		t.Fatalf("resume restored %s, want allocated", a.Status)
	}
	if a.AssignedTo != "emp-7" {
		t.Fatal("assignee lost across maintenance")
	}
}

func TestDisposalFlow(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	if err := a.BeginDisposal(rbac.RoleDisposalOfficer, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusPendingDisposal || a.DisposalResume != StatusActive {
		t.Fatalf("pending disposal: %s resume=%s", a.Status, a.DisposalResume)
	}
	if err := a.BeginDisposal(rbac.RoleDisposalOfficer, now); !errors.Is(err, ErrDisposalPending) {
		t.Fatalf("expected ErrDisposalPending, got %v", err)
	}
	if err := a.Retire(rbac.RoleDisposalOfficer, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusRetired {
		t.Fatalf("status = %s, want retired", a.Status)
	}
}

func TestDisposalRejectionRestoresResume(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	_ = a.Allocate(rbac.RoleAdmin, "emp-1", now)
	if err := a.BeginDisposal(rbac.RoleDisposalOfficer, now); err != nil {
		t.Fatal(err)
	}
	if err := a.CancelDisposal(rbac.RoleDisposalOfficer, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusAllocated {
		t.Fatalf("status = %s, want allocated", a.Status)
	}
}

func TestDisposalFromMaintenanceRevertsToMaintenance(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	_ = a.Allocate(rbac.RoleAdmin, "emp-1", now)
	_ = a.StartMaintenance(rbac.RoleAdmin, now)
	if err := a.BeginDisposal(rbac.RoleAdmin, now); err != nil {
		t.Fatal(err)
	}
	if err := a.CancelDisposal(rbac.RoleAdmin, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusUnderMaintenance {
		t.Fatalf("status = %s, want under_maintenance", a.Status)
	}
	// The earlier maintenance excursion still remembers its own resume.
	if err := a.CompleteMaintenance(rbac.RoleAdmin, now); err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusAllocated {
		t.Fatalf("status = %s, want allocated", a.Status)
	}
}

func TestRetiredIsTerminal(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	_ = a.BeginDisposal(rbac.RoleAdmin, now)
	_ = a.Retire(rbac.RoleAdmin, now)

	attempts := []error{
		a.Allocate(rbac.RoleAdmin, "emp-1", now),
		a.CheckIn(rbac.RoleAdmin, now),
		a.StartMaintenance(rbac.RoleAdmin, now),
		a.CompleteMaintenance(rbac.RoleAdmin, now),
		a.BeginDisposal(rbac.RoleAdmin, now),
		a.CancelDisposal(rbac.RoleAdmin, now),
		a.Retire(rbac.RoleAdmin, now),
		a.SetFinancialBasis(rbac.RoleAdmin, validParams().Basis, now),
	}
	for i, err := range attempts {
		if !errors.Is(err, ErrRetired) {
			t.Fatalf("attempt %d: expected ErrRetired, got %v", i, err)
		}
	}
	if a.Status != StatusRetired {
		t.Fatal("retired asset mutated")
	}
}

func TestInvalidCommandsDoNotMutate(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	before := a
	_ = a.CheckIn(rbac.RoleAdmin, now)
	_ = a.CompleteMaintenance(rbac.RoleAdmin, now)
	_ = a.CancelDisposal(rbac.RoleAdmin, now)
	_ = a.Retire(rbac.RoleAdmin, now)
	_ = a.Allocate(rbac.RoleViewer, "emp-1", now)
	if a != before {
		t.Fatalf("rejected commands mutated the asset: %+v", a)
	}
}

func TestSetFinancialBasis(t *testing.T) {
	a, _ := New(rbac.RoleAdmin, validParams(), now)
	b := a.Basis()
	b.SalvageValue = 0
	b.Method = WrittenDownValue
	if err := a.SetFinancialBasis(rbac.RoleFinance, b, now); err != nil {
		t.Fatal(err)
	}
	if a.Method != WrittenDownValue || a.SalvageValue != 0 {
		t.Fatalf("basis not applied: %+v", a.Basis())
	}
	if err := a.SetFinancialBasis(rbac.RoleEmployee, b, now); !errors.Is(err, rbac.ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}
