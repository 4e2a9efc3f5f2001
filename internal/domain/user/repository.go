package user

import "context"

// Repository loads and saves the user directory as a list of records.
// Revisions are opaque fingerprints of the stored list; 0 means nothing is stored.
type Repository interface {
	// Load returns the stored users and their revision. A blob that cannot be
	// decoded or validated yields ErrCorruptDirectory together with its revision.
	Load(ctx context.Context) ([]User, uint64, error)

	// Save stores users if the stored revision still equals expected.
	// Returns ErrStaleDirectory otherwise.
	Save(ctx context.Context, users []User, expected uint64) (uint64, error)

	// Put stores users unconditionally.
	Put(ctx context.Context, users []User) (uint64, error)

	// Clear removes the stored directory.
	Clear(ctx context.Context) error
}

// SessionStore persists the current-session pointer independently of the directory.
type SessionStore interface {
	// Get returns the session user, or nil when no session is stored.
	Get(ctx context.Context) (*User, error)
	Set(ctx context.Context, u User) error
	Clear(ctx context.Context) error
}
