// Package backup defines the cloud backup snapshot and the pluggable storage
// backend it is written to.
package backup

import (
	"context"
	"errors"
	"time"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/contact"
	"github.com/SoleStyle/solestyle/internal/domain/user"
)

// Version tags the snapshot format.
const Version = "1.0"

// ErrNoBackup is returned when downloading while no backup exists.
var ErrNoBackup = errors.New("no backup found")

// ErrInvalidSnapshot is returned when a stored backup cannot be decoded or
// has an unsupported version.
var ErrInvalidSnapshot = errors.New("invalid backup snapshot")

// Snapshot is everything a backup carries.
type Snapshot struct {
	Products     []catalog.Product `json:"products"`
	HeroProducts []string          `json:"heroProducts"`
	Contacts     []contact.Message `json:"contacts"`
	Users        []user.User       `json:"users"`
	// Timestamp is when the local state was captured.
	Timestamp time.Time `json:"timestamp"`
	// UploadedAt is when the backend accepted the blob.
	UploadedAt time.Time `json:"uploadedAt"`
	Version    string    `json:"version"`
}

// Info describes the stored backup.
type Info struct {
	LastModified time.Time `json:"lastModified"`
	// Size is the byte length of the serialized blob.
	Size int `json:"size"`
}

// Backend stores a single opaque backup blob. A real object-storage client
// can implement it without touching call sites.
type Backend interface {
	Put(ctx context.Context, blob []byte) error
	// Get returns the blob; ok is false when nothing is stored.
	Get(ctx context.Context) (blob []byte, ok bool, err error)
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
}

// Peeker is implemented by backends that can read the blob without the
// latency of a full download (used for metadata).
type Peeker interface {
	Peek(ctx context.Context) (blob []byte, ok bool, err error)
}
