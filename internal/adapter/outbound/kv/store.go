// Package kv provides string-keyed value stores used as the persistence layer
// for every storefront aggregate.
//
// Values are opaque strings (callers store serialized JSON snapshots). The
// stores do not validate content, expire keys, or offer atomicity across keys.
// CompareAndSet gives single-key optimistic concurrency so that two processes
// sharing one backend detect each other's writes instead of silently
// overwriting them.
package kv

import (
	"context"
	"errors"
	"regexp"

	"github.com/cespare/xxhash/v2"
)

// Revision fingerprints a stored value. NoRevision means the key is absent.
type Revision uint64

// NoRevision is the revision of a key that holds no value.
const NoRevision Revision = 0

// Sentinel errors for store operations.
var (
	// ErrRevisionMismatch is returned by CompareAndSet when the stored value
	// changed since the caller last read it.
	ErrRevisionMismatch = errors.New("kv: revision mismatch")
	// ErrInvalidKey is returned for keys containing characters outside [A-Za-z0-9_.-].
	ErrInvalidKey = errors.New("kv: invalid key")
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("kv: store closed")
)

// Store is a synchronous string-keyed value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key unconditionally.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// CompareAndSet stores value only if the current revision of key equals
	// expected. It returns the new revision, or ErrRevisionMismatch.
	CompareAndSet(ctx context.Context, key string, expected Revision, value string) (Revision, error)

	// Close releases resources held by the store.
	Close() error
}

// RevisionOf returns the revision of a stored value.
// The result is never NoRevision, so an empty value is distinguishable from an absent key.
func RevisionOf(value string) Revision {
	r := Revision(xxhash.Sum64String(value))
	if r == NoRevision {
		return 1
	}
	return r
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,200}$`)

// ValidateKey reports whether key is usable by every backend (file names included).
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
