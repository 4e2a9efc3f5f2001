package catalog

import "context"

// Repository loads and saves the catalog snapshot.
// Revisions are opaque fingerprints of the stored snapshot; 0 means nothing is stored.
type Repository interface {
	// Load returns the stored snapshot and its revision, or (nil, 0, nil) if
	// nothing is stored. A stored blob that cannot be decoded or validated
	// yields ErrCorruptSnapshot together with the blob's revision.
	Load(ctx context.Context) (*Snapshot, uint64, error)

	// Save stores s if the stored revision still equals expected.
	// Returns ErrStaleSnapshot otherwise.
	Save(ctx context.Context, s Snapshot, expected uint64) (uint64, error)

	// Put stores s unconditionally.
	Put(ctx context.Context, s Snapshot) (uint64, error)
}
