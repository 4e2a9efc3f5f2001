package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

// CatalogRepository stores the catalog snapshot under KeyCatalog.
type CatalogRepository struct {
	store kv.Store
}

// NewCatalogRepository creates a CatalogRepository.
func NewCatalogRepository(store kv.Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// Load decodes and validates the stored snapshot.
func (r *CatalogRepository) Load(ctx context.Context) (*catalog.Snapshot, uint64, error) {
	var snap catalog.Snapshot
	rev, found, err := loadJSON(ctx, r.store, KeyCatalog, &snap)
	if err != nil {
		if errors.Is(err, errDecode) {
			return nil, uint64(rev), fmt.Errorf("%w: %v", catalog.ErrCorruptSnapshot, err)
		}
		return nil, 0, err
	}
	if !found {
		return nil, 0, nil
	}
	if err := catalog.ValidateSnapshot(snap); err != nil {
		return nil, uint64(rev), fmt.Errorf("%w: %v", catalog.ErrCorruptSnapshot, err)
	}
	out := snap.Clone()
	return &out, uint64(rev), nil
}

// Save stores s with compare-and-set against expected.
func (r *CatalogRepository) Save(ctx context.Context, s catalog.Snapshot, expected uint64) (uint64, error) {
	rev, err := saveJSON(ctx, r.store, KeyCatalog, s, true, kv.Revision(expected))
	if errors.Is(err, kv.ErrRevisionMismatch) {
		return uint64(rev), catalog.ErrStaleSnapshot
	}
	return uint64(rev), err
}

// Put stores s unconditionally.
func (r *CatalogRepository) Put(ctx context.Context, s catalog.Snapshot) (uint64, error) {
	rev, err := saveJSON(ctx, r.store, KeyCatalog, s, false, kv.NoRevision)
	return uint64(rev), err
}

// Compile-time interface verification.
var _ catalog.Repository = (*CatalogRepository)(nil)
