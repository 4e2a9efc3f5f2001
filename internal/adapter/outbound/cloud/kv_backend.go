// Package cloud provides a mock cloud backup target: the blob lives under a
// dedicated key of a kv.Store, with artificial latency to emulate a network.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/backup"
)

// DefaultKey is the storage key of the backup blob.
const DefaultKey = "solestyle_cloud_backup"

// Latency is the artificial delay of each remote operation.
type Latency struct {
	Upload   time.Duration
	Download time.Duration
	Delete   time.Duration
}

// DefaultLatency is 1.5s upload, 1s download and 0.5s delete.
func DefaultLatency() Latency {
	return Latency{Upload: 1500 * time.Millisecond, Download: time.Second, Delete: 500 * time.Millisecond}
}

// KVBackend implements backup.Backend over a kv.Store.
type KVBackend struct {
	store   kv.Store
	key     string
	latency Latency
	logger  *slog.Logger
}

// Option configures a KVBackend.
type Option func(*KVBackend)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(b *KVBackend) { b.key = key }
}

// WithLatency overrides the artificial delays. Zero disables a delay.
func WithLatency(l Latency) Option {
	return func(b *KVBackend) { b.latency = l }
}

// NewKVBackend creates a backend with DefaultKey and DefaultLatency.
func NewKVBackend(store kv.Store, logger *slog.Logger, opts ...Option) *KVBackend {
	b := &KVBackend{
		store:   store,
		key:     DefaultKey,
		latency: DefaultLatency(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Put uploads blob after the upload delay. A cancelled context aborts
// before anything is written.
func (b *KVBackend) Put(ctx context.Context, blob []byte) error {
	if err := wait(ctx, b.latency.Upload); err != nil {
		return fmt.Errorf("upload aborted: %w", err)
	}
	if err := b.store.Set(ctx, b.key, string(blob)); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	b.logger.Debug("cloud blob stored", "key", b.key, "bytes", len(blob))
	return nil
}

// Get downloads the blob after the download delay. A missing blob is
// reported immediately.
func (b *KVBackend) Get(ctx context.Context) ([]byte, bool, error) {
	v, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		return nil, false, fmt.Errorf("download: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	if err := wait(ctx, b.latency.Download); err != nil {
		return nil, false, fmt.Errorf("download aborted: %w", err)
	}
	return []byte(v), true, nil
}

// Exists reports whether a blob is stored. It has no artificial delay.
func (b *KVBackend) Exists(ctx context.Context) (bool, error) {
	_, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return ok, nil
}

// Delete removes the blob after the delete delay.
func (b *KVBackend) Delete(ctx context.Context) error {
	if err := wait(ctx, b.latency.Delete); err != nil {
		return fmt.Errorf("delete aborted: %w", err)
	}
	if err := b.store.Remove(ctx, b.key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Compile-time interface verification.
var _ backup.Backend = (*KVBackend)(nil)

// Peek reads the blob without the download delay.
func (b *KVBackend) Peek(ctx context.Context) ([]byte, bool, error) {
	v, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		return nil, false, fmt.Errorf("peek: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

var _ backup.Peeker = (*KVBackend)(nil)
