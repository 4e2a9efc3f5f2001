package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/user"
)

// UserRepository stores the directory as a JSON array under KeyUsers.
type UserRepository struct {
	store kv.Store
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Load decodes and validates the stored directory. Absent means empty.
func (r *UserRepository) Load(ctx context.Context) ([]user.User, uint64, error) {
	var users []user.User
	rev, found, err := loadJSON(ctx, r.store, KeyUsers, &users)
	if err != nil {
		if errors.Is(err, errDecode) {
			return nil, uint64(rev), fmt.Errorf("%w: %v", user.ErrCorruptDirectory, err)
		}
		return nil, 0, err
	}
	if !found {
		return []user.User{}, 0, nil
	}
	if err := user.ValidateDirectory(users); err != nil {
		return nil, uint64(rev), fmt.Errorf("%w: %v", user.ErrCorruptDirectory, err)
	}
	out := make([]user.User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out, uint64(rev), nil
}

// Save stores users with compare-and-set against expected.
func (r *UserRepository) Save(ctx context.Context, users []user.User, expected uint64) (uint64, error) {
	rev, err := saveJSON(ctx, r.store, KeyUsers, nonNil(users), true, kv.Revision(expected))
	if errors.Is(err, kv.ErrRevisionMismatch) {
		return uint64(rev), user.ErrStaleDirectory
	}
	return uint64(rev), err
}

// Put stores users unconditionally.
func (r *UserRepository) Put(ctx context.Context, users []user.User) (uint64, error) {
	rev, err := saveJSON(ctx, r.store, KeyUsers, nonNil(users), false, kv.NoRevision)
	return uint64(rev), err
}

// Clear removes the stored directory.
func (r *UserRepository) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, KeyUsers); err != nil {
		return fmt.Errorf("remove %s: %w", KeyUsers, err)
	}
	return nil
}

// SessionRepository stores the current-session user under KeySession.
type SessionRepository struct {
	store kv.Store
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(store kv.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Get returns the session user or nil. A corrupt blob is an error and the
// caller decides whether to treat it as absent.
func (r *SessionRepository) Get(ctx context.Context) (*user.User, error) {
	var u user.User
	_, found, err := loadJSON(ctx, r.store, KeySession, &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

// Set stores u as the session.
func (r *SessionRepository) Set(ctx context.Context, u user.User) error {
	_, err := saveJSON(ctx, r.store, KeySession, u, false, kv.NoRevision)
	return err
}

// Clear removes the session.
func (r *SessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, KeySession); err != nil {
		return fmt.Errorf("remove %s: %w", KeySession, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Compile-time interface verification.
var (
	_ user.Repository   = (*UserRepository)(nil)
	_ user.SessionStore = (*SessionRepository)(nil)
)
