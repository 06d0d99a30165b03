// Package memory is the in-process implementation of lifecycle.Store. It
// backs tests and single-node deployments where durability is not required.
package memory

import (
	"context"
	"fmt"
	"sync"

	"assetflow.org/internal/asset"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/workflow"
)

// Store keeps every entity in maps guarded by one RWMutex. Values are
// copied on the way in and out so callers can never alias stored state.
type Store struct {
	txMu         sync.Mutex
	mu           sync.RWMutex
	assets       map[string]asset.Asset
	allocations  map[string]workflow.AllocationRecord
	maintenance  map[string]workflow.MaintenanceRecord
	procurements map[string]workflow.ProcurementRequest
	disposals    map[string]workflow.DisposalRequest
}

// New returns an empty store.
func New() *Store {
	return &Store{
		assets:       make(map[string]asset.Asset),
		allocations:  make(map[string]workflow.AllocationRecord),
		maintenance:  make(map[string]workflow.MaintenanceRecord),
		procurements: make(map[string]workflow.ProcurementRequest),
		disposals:    make(map[string]workflow.DisposalRequest),
	}
}

type snapshot struct {
	assets       map[string]asset.Asset
	allocations  map[string]workflow.AllocationRecord
	maintenance  map[string]workflow.MaintenanceRecord
	procurements map[string]workflow.ProcurementRequest
	disposals    map[string]workflow.DisposalRequest
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// WithinTx serialises transactions and restores the pre-transaction state
// when fn fails, so multi-entity commands never persist partially.
func (s *Store) WithinTx(_ context.Context, fn func(lifecycle.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		assets:       copyMap(s.assets),
		allocations:  copyMap(s.allocations),
		maintenance:  copyMap(s.maintenance),
		procurements: copyMap(s.procurements),
		disposals:    copyMap(s.disposals),
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.assets = snap.assets
		s.allocations = snap.allocations
		s.maintenance = snap.maintenance
		s.procurements = snap.procurements
		s.disposals = snap.disposals
		s.mu.Unlock()
		return err
	}
	return nil
}

func checkVersion(id string, stored uint64, exists bool, expected uint64) error {
	if expected == 0 {
		if exists {
			return fmt.Errorf("%w: %s already exists", lifecycle.ErrConcurrentModification, id)
		}
		return nil
	}
	if !exists {
		return fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	if stored != expected {
		return fmt.Errorf("%w: %s version %d, expected %d", lifecycle.ErrConcurrentModification, id, stored, expected)
	}
	return nil
}

func (s *Store) LoadAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, fmt.Errorf("%w: asset %s", lifecycle.ErrNotFound, id)
	}
	return a, nil
}

func (s *Store) SaveAsset(_ context.Context, a asset.Asset, expectedVersion uint64) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.assets[a.ID]
	if err := checkVersion(a.ID, stored.Version, ok, expectedVersion); err != nil {
		return asset.Asset{}, err
	}
	a.Version = expectedVersion + 1
	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) ListAssetsForRevaluation(_ context.Context) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]asset.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		if a.Status == asset.StatusRetired {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ListAssets returns every asset, for the read API.
func (s *Store) ListAssets(_ context.Context) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]asset.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) LoadAllocation(_ context.Context, id string) (workflow.AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.allocations[id]
	if !ok {
		return workflow.AllocationRecord{}, fmt.Errorf("%w: allocation %s", lifecycle.ErrNotFound, id)
	}
	return r, nil
}

func (s *Store) SaveAllocation(_ context.Context, rec workflow.AllocationRecord, expectedVersion uint64) (workflow.AllocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.allocations[rec.ID]
	if err := checkVersion(rec.ID, stored.Version, ok, expectedVersion); err != nil {
		return workflow.AllocationRecord{}, err
	}
	rec.Version = expectedVersion + 1
	s.allocations[rec.ID] = rec
	return rec, nil
}

func (s *Store) ActiveAllocationForAsset(_ context.Context, assetID string) (workflow.AllocationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.allocations {
		if r.AssetID == assetID && r.Status == workflow.AllocationActive {
			return r, true, nil
		}
	}
	return workflow.AllocationRecord{}, false, nil
}

// ListAllocations returns all allocation records.
func (s *Store) ListAllocations(_ context.Context) ([]workflow.AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.AllocationRecord, 0, len(s.allocations))
	for _, r := range s.allocations {
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) LoadMaintenance(_ context.Context, id string) (workflow.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maintenance[id]
	if !ok {
		return workflow.MaintenanceRecord{}, fmt.Errorf("%w: maintenance %s", lifecycle.ErrNotFound, id)
	}
	return m, nil
}

func (s *Store) SaveMaintenance(_ context.Context, rec workflow.MaintenanceRecord, expectedVersion uint64) (workflow.MaintenanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.maintenance[rec.ID]
	if err := checkVersion(rec.ID, stored.Version, ok, expectedVersion); err != nil {
		return workflow.MaintenanceRecord{}, err
	}
	rec.Version = expectedVersion + 1
	s.maintenance[rec.ID] = rec
	return rec, nil
}

func (s *Store) OpenMaintenanceForAsset(_ context.Context, assetID string) (workflow.MaintenanceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.maintenance {
		if m.AssetID == assetID && m.Open() {
			return m, true, nil
		}
	}
	return workflow.MaintenanceRecord{}, false, nil
}

// ListMaintenance returns all maintenance records.
func (s *Store) ListMaintenance(_ context.Context) ([]workflow.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.MaintenanceRecord, 0, len(s.maintenance))
	for _, m := range s.maintenance {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) LoadProcurement(_ context.Context, id string) (workflow.ProcurementRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.procurements[id]
	if !ok {
		return workflow.ProcurementRequest{}, fmt.Errorf("%w: procurement %s", lifecycle.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) SaveProcurement(_ context.Context, req workflow.ProcurementRequest, expectedVersion uint64) (workflow.ProcurementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.procurements[req.ID]
	if err := checkVersion(req.ID, stored.Version, ok, expectedVersion); err != nil {
		return workflow.ProcurementRequest{}, err
	}
	req.Version = expectedVersion + 1
	s.procurements[req.ID] = req
	return req, nil
}

// ListProcurements returns all procurement requests.
func (s *Store) ListProcurements(_ context.Context) ([]workflow.ProcurementRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.ProcurementRequest, 0, len(s.procurements))
	for _, p := range s.procurements {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) LoadDisposal(_ context.Context, id string) (workflow.DisposalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disposals[id]
	if !ok {
		return workflow.DisposalRequest{}, fmt.Errorf("%w: disposal %s", lifecycle.ErrNotFound, id)
	}
	return d, nil
}

func (s *Store) SaveDisposal(_ context.Context, req workflow.DisposalRequest, expectedVersion uint64) (workflow.DisposalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.disposals[req.ID]
	if err := checkVersion(req.ID, stored.Version, ok, expectedVersion); err != nil {
		return workflow.DisposalRequest{}, err
	}
	req.Version = expectedVersion + 1
	s.disposals[req.ID] = req
	return req, nil
}

func (s *Store) OpenDisposalForAsset(_ context.Context, assetID string) (workflow.DisposalRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.disposals {
		if d.AssetID == assetID && d.Open() {
			return d, true, nil
		}
	}
	return workflow.DisposalRequest{}, false, nil
}

// ListDisposals returns all disposal requests.
func (s *Store) ListDisposals(_ context.Context) ([]workflow.DisposalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.DisposalRequest, 0, len(s.disposals))
	for _, d := range s.disposals {
		out = append(out, d)
	}
	return out, nil
}

var _ lifecycle.Store = (*Store)(nil)
