package kv

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
// Thread-safe for concurrent access. For development/testing only.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.values[key] = value
	return nil
}

// Remove deletes key.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.values, key)
	return nil
}

// CompareAndSet stores value if the current revision matches expected.
func (s *MemoryStore) CompareAndSet(_ context.Context, key string, expected Revision, value string) (Revision, error) {
	if err := ValidateKey(key); err != nil {
		return NoRevision, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NoRevision, ErrClosed
	}
	current := NoRevision
	if v, ok := s.values[key]; ok {
		current = RevisionOf(v)
	}
	if current != expected {
		return current, ErrRevisionMismatch
	}
	s.values[key] = value
	return RevisionOf(value), nil
}

// Close marks the store closed. Subsequent calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Compile-time interface verification.
var _ Store = (*MemoryStore)(nil)
