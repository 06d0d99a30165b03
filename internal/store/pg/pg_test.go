package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/workflow"
)

var assetCols = []string{
	"id", "name", "category", "status", "maintenance_resume", "disposal_resume",
	"purchase_cost", "salvage_value", "purchase_date", "useful_life_months", "depreciation_method",
	"current_book_value", "location", "department", "assigned_to", "version", "created_at", "updated_at",
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestLoadAsset(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`select .+ from assets where id=\$1`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(assetCols).AddRow(
			"a-1", "laptop", "it_equipment", "allocated", nil, nil,
			int64(7_500_000), int64(500_000), now, 36, "straight_line",
			int64(5_166_667), "HQ", "IT", "emp-3", uint64(4), now, now,
		))

	a, err := s.LoadAsset(context.Background(), "a-1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != asset.StatusAllocated || a.AssignedTo != "emp-3" || a.Version != 4 {
		t.Fatalf("asset = %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAssetNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`select .+ from assets where id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(assetCols))

	_, err := s.LoadAsset(context.Background(), "missing")
	if !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAssetCreate(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	a := asset.Asset{
		ID: "a-1", Name: "laptop", Category: asset.CategoryITEquipment,
		Status: asset.StatusActive, PurchaseCost: 100, PurchaseDate: now,
		UsefulLifeMonths: 12, Method: asset.StraightLine, CurrentBookValue: 100,
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(`insert into assets`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := s.SaveAsset(context.Background(), a, 0)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Version != 1 {
		t.Fatalf("version = %d", saved.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveAssetStaleVersion(t *testing.T) {
	s, mock := newMock(t)
	a := asset.Asset{ID: "a-1", Status: asset.StatusActive, Version: 2}

	mock.ExpectExec(`update assets set`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select exists\(select 1 from assets where id=\$1\)`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := s.SaveAsset(context.Background(), a, 2)
	if !errors.Is(err, lifecycle.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestSaveAssetVanished(t *testing.T) {
	s, mock := newMock(t)
	a := asset.Asset{ID: "a-9", Status: asset.StatusActive, Version: 1}

	mock.ExpectExec(`update assets set`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select exists\(select 1 from assets where id=\$1\)`).
		WithArgs("a-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := s.SaveAsset(context.Background(), a, 1)
	if !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAssetUpdateBumpsVersion(t *testing.T) {
	s, mock := newMock(t)
	a := asset.Asset{ID: "a-1", Status: asset.StatusAllocated, Version: 3}

	mock.ExpectExec(`update assets set`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := s.SaveAsset(context.Background(), a, 3)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Version != 4 {
		t.Fatalf("version = %d", saved.Version)
	}
}

func TestActiveAllocationForAsset(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{
		"id", "asset_id", "assignee", "department", "location", "allocation_type",
		"assign_date", "expected_return_date", "status", "returned_at", "version", "created_at", "updated_at",
	}

	mock.ExpectQuery(`select .+ from allocations where asset_id=\$1 and status='active'`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"al-1", "a-1", "emp-2", nil, nil, "temporary",
			now, now.AddDate(0, 1, 0), "active", nil, uint64(1), now, now,
		))

	rec, ok, err := s.ActiveAllocationForAsset(context.Background(), "a-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || rec.Assignee != "emp-2" || rec.Type != workflow.AllocationTemporary {
		t.Fatalf("rec = %+v ok=%v", rec, ok)
	}
	if rec.ExpectedReturnDate.IsZero() {
		t.Fatal("expected return date not scanned")
	}

	mock.ExpectQuery(`select .+ from allocations where asset_id=\$1 and status='active'`).
		WithArgs("a-2").
		WillReturnRows(sqlmock.NewRows(cols))
	_, ok, err = s.ActiveAllocationForAsset(context.Background(), "a-2")
	if err != nil || ok {
		t.Fatalf("expected no active allocation, ok=%v err=%v", ok, err)
	}
}

func TestOpenDisposalForAsset(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{
		"id", "asset_id", "reason", "estimated_value", "salvage_value",
		"disposal_method", "status", "decision_note", "version", "created_at", "updated_at",
	}

	mock.ExpectQuery(`select .+ from disposal_requests`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"d-1", "a-1", "end of life", int64(0), int64(0),
			"scrap", "approved", nil, uint64(2), now, now,
		))

	d, ok, err := s.OpenDisposalForAsset(context.Background(), "a-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || d.Status != workflow.DisposalApproved {
		t.Fatalf("d = %+v ok=%v", d, ok)
	}
}

func TestWithinTxCommits(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`insert into assets`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(tx lifecycle.Store) error {
		_, err := tx.SaveAsset(context.Background(), asset.Asset{
			ID: "a-1", Name: "laptop", Category: asset.CategoryITEquipment,
			Status: asset.StatusActive, PurchaseCost: 100, PurchaseDate: now,
			UsefulLifeMonths: 12, Method: asset.StraightLine,
			CreatedAt: now, UpdatedAt: now,
		}, 0)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAllocateRollsBackWhenRecordInsertFails(t *testing.T) {
	s, mock := newMock(t)
	eng, err := lifecycle.New(s)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`select .+ from assets where id=\$1`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(assetCols).AddRow(
			"a-1", "laptop", "it_equipment", "active", nil, nil,
			int64(7_500_000), int64(500_000), now, 36, "straight_line",
			int64(5_166_667), nil, nil, nil, uint64(1), now, now,
		))
	mock.ExpectQuery(`select .+ from allocations where asset_id=\$1 and status='active'`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`update assets set`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into allocations`).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "idx_allocations_active"`))
	mock.ExpectRollback()

	_, err = eng.Apply(context.Background(), lifecycle.AllocateAsset{
		Params: workflow.AllocationParams{
			AssetID:  "a-1",
			Assignee: "emp-2",
			Type:     workflow.AllocationPermanent,
		},
		AssetVersion: 1,
	}, rbac.RoleAssetManager)
	if err == nil {
		t.Fatal("expected the allocation insert failure to surface")
	}

	// The rollback expectation above is the point: the asset update must not
	// outlive the failed allocation insert.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListAssetsForRevaluationExcludesRetired(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select .+ from assets where status <> 'retired'`).
		WillReturnRows(sqlmock.NewRows(assetCols).AddRow(
			"a-1", "desk", "furniture", "active", nil, nil,
			int64(1000), int64(0), now, 60, "straight_line",
			int64(900), nil, nil, nil, uint64(1), now, now,
		))

	assets, err := s.ListAssetsForRevaluation(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].ID != "a-1" {
		t.Fatalf("assets = %+v", assets)
	}
}
