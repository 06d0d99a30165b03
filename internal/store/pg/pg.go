// Package pg is the PostgreSQL implementation of lifecycle.Store. Optimistic
// concurrency is enforced with a version column: updates carry the expected
// version in the WHERE clause and bump it on success.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/workflow"
)

// querier is the slice of database/sql shared by *sql.DB and *sql.Tx, so
// the same statement code runs in and out of a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier
}

var _ lifecycle.Store = (*Store)(nil)

// Open connects to PostgreSQL through the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, q: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db, q: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// WithinTx runs fn against a view of the store bound to one transaction.
// Any error from fn rolls the whole transaction back.
func (s *Store) WithinTx(ctx context.Context, fn func(lifecycle.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// conflictOrMissing resolves a zero-row versioned update into the right
// sentinel.
func (s *Store) conflictOrMissing(ctx context.Context, table, id string) error {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		fmt.Sprintf(`select exists(select 1 from %s where id=$1)`, table), id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s", lifecycle.ErrConcurrentModification, id)
}

// --- assets ---

const assetColumns = `id, name, category, status, maintenance_resume, disposal_resume,
	purchase_cost, salvage_value, purchase_date, useful_life_months, depreciation_method,
	current_book_value, location, department, assigned_to, version, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (asset.Asset, error) {
	var a asset.Asset
	var maintResume, dispResume, location, department, assignedTo sql.NullString
	err := row.Scan(&a.ID, &a.Name, &a.Category, &a.Status, &maintResume, &dispResume,
		&a.PurchaseCost, &a.SalvageValue, &a.PurchaseDate, &a.UsefulLifeMonths, &a.Method,
		&a.CurrentBookValue, &location, &department, &assignedTo, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, err
	}
	a.MaintenanceResume = asset.Status(maintResume.String)
	a.DisposalResume = asset.Status(dispResume.String)
	a.Location = location.String
	a.Department = department.String
	a.AssignedTo = assignedTo.String
	return a, nil
}

func (s *Store) LoadAsset(ctx context.Context, id string) (asset.Asset, error) {
	row := s.q.QueryRowContext(ctx, `select `+assetColumns+` from assets where id=$1`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Asset{}, fmt.Errorf("%w: asset %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func (s *Store) SaveAsset(ctx context.Context, a asset.Asset, expectedVersion uint64) (asset.Asset, error) {
	if expectedVersion == 0 {
		a.Version = 1
		_, err := s.q.ExecContext(ctx, `
			insert into assets(`+assetColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			a.ID, a.Name, a.Category, a.Status,
			nullString(string(a.MaintenanceResume)), nullString(string(a.DisposalResume)),
			a.PurchaseCost, a.SalvageValue, a.PurchaseDate, a.UsefulLifeMonths, a.Method,
			a.CurrentBookValue, nullString(a.Location), nullString(a.Department),
			nullString(a.AssignedTo), a.Version, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return asset.Asset{}, err
		}
		return a, nil
	}

	res, err := s.q.ExecContext(ctx, `
		update assets set
			name=$1, category=$2, status=$3, maintenance_resume=$4, disposal_resume=$5,
			purchase_cost=$6, salvage_value=$7, purchase_date=$8, useful_life_months=$9,
			depreciation_method=$10, current_book_value=$11, location=$12, department=$13,
			assigned_to=$14, version=version+1, updated_at=$15
		where id=$16 and version=$17`,
		a.Name, a.Category, a.Status,
		nullString(string(a.MaintenanceResume)), nullString(string(a.DisposalResume)),
		a.PurchaseCost, a.SalvageValue, a.PurchaseDate, a.UsefulLifeMonths,
		a.Method, a.CurrentBookValue, nullString(a.Location), nullString(a.Department),
		nullString(a.AssignedTo), a.UpdatedAt, a.ID, expectedVersion)
	if err != nil {
		return asset.Asset{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return asset.Asset{}, err
	}
	if n == 0 {
		return asset.Asset{}, s.conflictOrMissing(ctx, "assets", a.ID)
	}
	a.Version = expectedVersion + 1
	return a, nil
}

func (s *Store) ListAssetsForRevaluation(ctx context.Context) ([]asset.Asset, error) {
	rows, err := s.q.QueryContext(ctx,
		`select `+assetColumns+` from assets where status <> 'retired' order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAssets returns every asset for the read API.
func (s *Store) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	rows, err := s.q.QueryContext(ctx, `select `+assetColumns+` from assets order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- allocations ---

const allocationColumns = `id, asset_id, assignee, department, location, allocation_type,
	assign_date, expected_return_date, status, returned_at, version, created_at, updated_at`

func scanAllocation(row interface{ Scan(...any) error }) (workflow.AllocationRecord, error) {
	var r workflow.AllocationRecord
	var department, location sql.NullString
	var expectedReturn, returnedAt sql.NullTime
	err := row.Scan(&r.ID, &r.AssetID, &r.Assignee, &department, &location, &r.Type,
		&r.AssignDate, &expectedReturn, &r.Status, &returnedAt, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return workflow.AllocationRecord{}, err
	}
	r.Department = department.String
	r.Location = location.String
	r.ExpectedReturnDate = expectedReturn.Time
	r.ReturnedAt = returnedAt.Time
	return r, nil
}

func (s *Store) LoadAllocation(ctx context.Context, id string) (workflow.AllocationRecord, error) {
	row := s.q.QueryRowContext(ctx, `select `+allocationColumns+` from allocations where id=$1`, id)
	r, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.AllocationRecord{}, fmt.Errorf("%w: allocation %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return workflow.AllocationRecord{}, err
	}
	return r, nil
}

func (s *Store) SaveAllocation(ctx context.Context, rec workflow.AllocationRecord, expectedVersion uint64) (workflow.AllocationRecord, error) {
	if expectedVersion == 0 {
		rec.Version = 1
		_, err := s.q.ExecContext(ctx, `
			insert into allocations(`+allocationColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			rec.ID, rec.AssetID, rec.Assignee, nullString(rec.Department), nullString(rec.Location),
			rec.Type, rec.AssignDate, nullTime(rec.ExpectedReturnDate), rec.Status,
			nullTime(rec.ReturnedAt), rec.Version, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return workflow.AllocationRecord{}, err
		}
		return rec, nil
	}

	res, err := s.q.ExecContext(ctx, `
		update allocations set
			assignee=$1, department=$2, location=$3, allocation_type=$4, assign_date=$5,
			expected_return_date=$6, status=$7, returned_at=$8, version=version+1, updated_at=$9
		where id=$10 and version=$11`,
		rec.Assignee, nullString(rec.Department), nullString(rec.Location), rec.Type,
		rec.AssignDate, nullTime(rec.ExpectedReturnDate), rec.Status, nullTime(rec.ReturnedAt),
		rec.UpdatedAt, rec.ID, expectedVersion)
	if err != nil {
		return workflow.AllocationRecord{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return workflow.AllocationRecord{}, err
	}
	if n == 0 {
		return workflow.AllocationRecord{}, s.conflictOrMissing(ctx, "allocations", rec.ID)
	}
	rec.Version = expectedVersion + 1
	return rec, nil
}

func (s *Store) ActiveAllocationForAsset(ctx context.Context, assetID string) (workflow.AllocationRecord, bool, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+allocationColumns+` from allocations where asset_id=$1 and status='active'`, assetID)
	r, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.AllocationRecord{}, false, nil
	}
	if err != nil {
		return workflow.AllocationRecord{}, false, err
	}
	return r, true, nil
}

// ListAllocations returns every allocation record for the read API.
func (s *Store) ListAllocations(ctx context.Context) ([]workflow.AllocationRecord, error) {
	rows, err := s.q.QueryContext(ctx, `select `+allocationColumns+` from allocations order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workflow.AllocationRecord
	for rows.Next() {
		r, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- maintenance ---

const maintenanceColumns = `id, asset_id, maintenance_type, priority, status, vendor,
	estimated_cost, scheduled_for, started_at, completed_at, version, created_at, updated_at`

func scanMaintenance(row interface{ Scan(...any) error }) (workflow.MaintenanceRecord, error) {
	var m workflow.MaintenanceRecord
	var vendor sql.NullString
	var scheduledFor, startedAt, completedAt sql.NullTime
	err := row.Scan(&m.ID, &m.AssetID, &m.Type, &m.Priority, &m.Status, &vendor,
		&m.EstimatedCost, &scheduledFor, &startedAt, &completedAt, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return workflow.MaintenanceRecord{}, err
	}
	m.Vendor = vendor.String
	m.ScheduledFor = scheduledFor.Time
	m.StartedAt = startedAt.Time
	m.CompletedAt = completedAt.Time
	return m, nil
}

func (s *Store) LoadMaintenance(ctx context.Context, id string) (workflow.MaintenanceRecord, error) {
	row := s.q.QueryRowContext(ctx, `select `+maintenanceColumns+` from maintenance_records where id=$1`, id)
	m, err := scanMaintenance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.MaintenanceRecord{}, fmt.Errorf("%w: maintenance %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return workflow.MaintenanceRecord{}, err
	}
	return m, nil
}

func (s *Store) SaveMaintenance(ctx context.Context, rec workflow.MaintenanceRecord, expectedVersion uint64) (workflow.MaintenanceRecord, error) {
	if expectedVersion == 0 {
		rec.Version = 1
		_, err := s.q.ExecContext(ctx, `
			insert into maintenance_records(`+maintenanceColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			rec.ID, rec.AssetID, rec.Type, rec.Priority, rec.Status, nullString(rec.Vendor),
			rec.EstimatedCost, nullTime(rec.ScheduledFor), nullTime(rec.StartedAt),
			nullTime(rec.CompletedAt), rec.Version, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return workflow.MaintenanceRecord{}, err
		}
		return rec, nil
	}

	res, err := s.q.ExecContext(ctx, `
		update maintenance_records set
			maintenance_type=$1, priority=$2, status=$3, vendor=$4, estimated_cost=$5,
			scheduled_for=$6, started_at=$7, completed_at=$8, version=version+1, updated_at=$9
		where id=$10 and version=$11`,
		rec.Type, rec.Priority, rec.Status, nullString(rec.Vendor), rec.EstimatedCost,
		nullTime(rec.ScheduledFor), nullTime(rec.StartedAt), nullTime(rec.CompletedAt),
		rec.UpdatedAt, rec.ID, expectedVersion)
	if err != nil {
		return workflow.MaintenanceRecord{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return workflow.MaintenanceRecord{}, err
	}
	if n == 0 {
		return workflow.MaintenanceRecord{}, s.conflictOrMissing(ctx, "maintenance_records", rec.ID)
	}
	rec.Version = expectedVersion + 1
	return rec, nil
}

func (s *Store) OpenMaintenanceForAsset(ctx context.Context, assetID string) (workflow.MaintenanceRecord, bool, error) {
	row := s.q.QueryRowContext(ctx, `
		select `+maintenanceColumns+` from maintenance_records
		where asset_id=$1 and status in ('scheduled','in_progress')`, assetID)
	m, err := scanMaintenance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.MaintenanceRecord{}, false, nil
	}
	if err != nil {
		return workflow.MaintenanceRecord{}, false, err
	}
	return m, true, nil
}

// ListMaintenance returns every maintenance record for the read API.
func (s *Store) ListMaintenance(ctx context.Context) ([]workflow.MaintenanceRecord, error) {
	rows, err := s.q.QueryContext(ctx, `select `+maintenanceColumns+` from maintenance_records order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workflow.MaintenanceRecord
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- procurements ---

const procurementColumns = `id, title, category, priority, estimated_cost, requested_by,
	status, decision_note, version, created_at, updated_at`

func scanProcurement(row interface{ Scan(...any) error }) (workflow.ProcurementRequest, error) {
	var p workflow.ProcurementRequest
	var note sql.NullString
	err := row.Scan(&p.ID, &p.Title, &p.Category, &p.Priority, &p.EstimatedCost,
		&p.RequestedBy, &p.Status, &note, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return workflow.ProcurementRequest{}, err
	}
	p.DecisionNote = note.String
	return p, nil
}

func (s *Store) LoadProcurement(ctx context.Context, id string) (workflow.ProcurementRequest, error) {
	row := s.q.QueryRowContext(ctx, `select `+procurementColumns+` from procurement_requests where id=$1`, id)
	p, err := scanProcurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.ProcurementRequest{}, fmt.Errorf("%w: procurement %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return workflow.ProcurementRequest{}, err
	}
	return p, nil
}

func (s *Store) SaveProcurement(ctx context.Context, req workflow.ProcurementRequest, expectedVersion uint64) (workflow.ProcurementRequest, error) {
	if expectedVersion == 0 {
		req.Version = 1
		_, err := s.q.ExecContext(ctx, `
			insert into procurement_requests(`+procurementColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			req.ID, req.Title, req.Category, req.Priority, req.EstimatedCost, req.RequestedBy,
			req.Status, nullString(req.DecisionNote), req.Version, req.CreatedAt, req.UpdatedAt)
		if err != nil {
			return workflow.ProcurementRequest{}, err
		}
		return req, nil
	}

	res, err := s.q.ExecContext(ctx, `
		update procurement_requests set
			title=$1, category=$2, priority=$3, estimated_cost=$4, requested_by=$5,
			status=$6, decision_note=$7, version=version+1, updated_at=$8
		where id=$9 and version=$10`,
		req.Title, req.Category, req.Priority, req.EstimatedCost, req.RequestedBy,
		req.Status, nullString(req.DecisionNote), req.UpdatedAt, req.ID, expectedVersion)
	if err != nil {
		return workflow.ProcurementRequest{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return workflow.ProcurementRequest{}, err
	}
	if n == 0 {
		return workflow.ProcurementRequest{}, s.conflictOrMissing(ctx, "procurement_requests", req.ID)
	}
	req.Version = expectedVersion + 1
	return req, nil
}

// ListProcurements returns every procurement request for the read API.
func (s *Store) ListProcurements(ctx context.Context) ([]workflow.ProcurementRequest, error) {
	rows, err := s.q.QueryContext(ctx, `select `+procurementColumns+` from procurement_requests order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workflow.ProcurementRequest
	for rows.Next() {
		p, err := scanProcurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- disposals ---

const disposalColumns = `id, asset_id, reason, estimated_value, salvage_value,
	disposal_method, status, decision_note, version, created_at, updated_at`

func scanDisposal(row interface{ Scan(...any) error }) (workflow.DisposalRequest, error) {
	var d workflow.DisposalRequest
	var note sql.NullString
	err := row.Scan(&d.ID, &d.AssetID, &d.Reason, &d.EstimatedValue, &d.SalvageValue,
		&d.Method, &d.Status, &note, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return workflow.DisposalRequest{}, err
	}
	d.DecisionNote = note.String
	return d, nil
}

func (s *Store) LoadDisposal(ctx context.Context, id string) (workflow.DisposalRequest, error) {
	row := s.q.QueryRowContext(ctx, `select `+disposalColumns+` from disposal_requests where id=$1`, id)
	d, err := scanDisposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.DisposalRequest{}, fmt.Errorf("%w: disposal %s", lifecycle.ErrNotFound, id)
	}
	if err != nil {
		return workflow.DisposalRequest{}, err
	}
	return d, nil
}

func (s *Store) SaveDisposal(ctx context.Context, req workflow.DisposalRequest, expectedVersion uint64) (workflow.DisposalRequest, error) {
	if expectedVersion == 0 {
		req.Version = 1
		_, err := s.q.ExecContext(ctx, `
			insert into disposal_requests(`+disposalColumns+`)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			req.ID, req.AssetID, req.Reason, req.EstimatedValue, req.SalvageValue,
			req.Method, req.Status, nullString(req.DecisionNote), req.Version, req.CreatedAt, req.UpdatedAt)
		if err != nil {
			return workflow.DisposalRequest{}, err
		}
		return req, nil
	}

	res, err := s.q.ExecContext(ctx, `
		update disposal_requests set
			reason=$1, estimated_value=$2, salvage_value=$3, disposal_method=$4,
			status=$5, decision_note=$6, version=version+1, updated_at=$7
		where id=$8 and version=$9`,
		req.Reason, req.EstimatedValue, req.SalvageValue, req.Method,
		req.Status, nullString(req.DecisionNote), req.UpdatedAt, req.ID, expectedVersion)
	if err != nil {
		return workflow.DisposalRequest{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return workflow.DisposalRequest{}, err
	}
	if n == 0 {
		return workflow.DisposalRequest{}, s.conflictOrMissing(ctx, "disposal_requests", req.ID)
	}
	req.Version = expectedVersion + 1
	return req, nil
}

func (s *Store) OpenDisposalForAsset(ctx context.Context, assetID string) (workflow.DisposalRequest, bool, error) {
	row := s.q.QueryRowContext(ctx, `
		select `+disposalColumns+` from disposal_requests
		where asset_id=$1 and status in ('pending_approval','approved')`, assetID)
	d, err := scanDisposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.DisposalRequest{}, false, nil
	}
	if err != nil {
		return workflow.DisposalRequest{}, false, err
	}
	return d, true, nil
}

// ListDisposals returns every disposal request for the read API.
func (s *Store) ListDisposals(ctx context.Context) ([]workflow.DisposalRequest, error) {
	rows, err := s.q.QueryContext(ctx, `select `+disposalColumns+` from disposal_requests order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workflow.DisposalRequest
	for rows.Next() {
		d, err := scanDisposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
