package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// FileStore implements Store with one JSON file per key inside a directory.
// It provides atomic writes (write-tmp-then-rename), a ".bak" copy of the
// previous value, and file locking (flock for cross-process, mutex for
// in-process) so that several storefront processes can share one directory.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore creates a FileStore rooted at dir, creating it with 0700 if missing.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads the file for key.
// Warns if the file has permissions more open than 0600.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	return s.read(key)
}

func (s *FileStore) read(key string) (string, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}

	// Skip on Windows where Unix file permission bits are not supported.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("storage file has too-open permissions, should be 0600",
					"path", path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}
	return string(data), true, nil
}

// Set writes value for key atomically.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(key, func() error {
		return s.write(key, value)
	})
}

// CompareAndSet writes value only if the file content still has the expected revision.
// The check and the write happen under the same cross-process lock.
func (s *FileStore) CompareAndSet(_ context.Context, key string, expected Revision, value string) (Revision, error) {
	if err := ValidateKey(key); err != nil {
		return NoRevision, err
	}
	var current Revision
	err := s.withLock(key, func() error {
		old, ok, err := s.read(key)
		if err != nil {
			return err
		}
		current = NoRevision
		if ok {
			current = RevisionOf(old)
		}
		if current != expected {
			return ErrRevisionMismatch
		}
		return s.write(key, value)
	})
	if err != nil {
		if errors.Is(err, ErrRevisionMismatch) {
			return current, err
		}
		return NoRevision, err
	}
	return RevisionOf(value), nil
}

// Remove deletes the file for key and its backup.
func (s *FileStore) Remove(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(key, func() error {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		_ = os.Remove(s.path(key) + ".bak")
		return nil
	})
}

// Close is a no-op; files are opened per operation.
func (s *FileStore) Close() error {
	return nil
}

// withLock runs fn holding the in-process mutex and a flock on "<key>.lock".
func (s *FileStore) withLock(key string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockPath := filepath.Join(s.dir, key+".lock")
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := lockExclusive(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer unlock(lockFile.Fd()) //nolint:errcheck

	return fn()
}

// write copies the current file to ".bak" and atomically replaces it.
// Caller must hold the key lock.
func (s *FileStore) write(key, value string) error {
	path := s.path(key)
	if currentData, readErr := os.ReadFile(path); readErr == nil {
		if writeErr := os.WriteFile(path+".bak", currentData, 0600); writeErr != nil {
			s.logger.Warn("failed to create backup", "key", key, "error", writeErr)
		}
	}

	if err := writeAtomic(path, []byte(value)); err != nil {
		return err
	}
	if err := os.Chmod(path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on storage file", "key", key, "error", err)
	}
	s.logger.Debug("storage key saved", "key", key, "bytes", len(value))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it over path.
// On any error the temp file is cleaned up.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Compile-time interface verification.
var _ Store = (*FileStore)(nil)
