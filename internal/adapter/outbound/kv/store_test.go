package kv

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// backends returns one fresh store per available driver.
// Redis is only exercised when SOLESTYLE_TEST_REDIS_ADDR is set.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	file, err := NewFileStore(filepath.Join(t.TempDir(), "data"), testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sqlite, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "kv.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": sqlite,
	}
	if addr := os.Getenv("SOLESTYLE_TEST_REDIS_ADDR"); addr != "" {
		r, err := NewRedisStore(ctx, addr, "solestyle_test_"+t.Name()+"_", testLogger())
		if err != nil {
			t.Fatalf("NewRedisStore: %v", err)
		}
		t.Cleanup(func() { _ = r.Close() })
		stores["redis"] = r
	}
	return stores
}

// ---------------------------------------------------------------------------
// Contract tests (all backends)
// ---------------------------------------------------------------------------

func TestStore_GetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, ok, err := s.Get(context.Background(), "missing")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if ok || v != "" {
				t.Errorf("expected absent key, got ok=%v value=%q", ok, v)
			}
		})
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "solestyle_database", `{"products":[]}`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			v, ok, err := s.Get(ctx, "solestyle_database")
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if v != `{"products":[]}` {
				t.Errorf("value = %q", v)
			}

			if err := s.Set(ctx, "solestyle_database", "second"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, _, _ = s.Get(ctx, "solestyle_database")
			if v != "second" {
				t.Errorf("value after overwrite = %q", v)
			}

			if err := s.Remove(ctx, "solestyle_database"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, ok, _ := s.Get(ctx, "solestyle_database"); ok {
				t.Error("expected key gone after Remove")
			}
			if err := s.Remove(ctx, "solestyle_database"); err != nil {
				t.Errorf("removing absent key should not fail: %v", err)
			}
		})
	}
}

func TestStore_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rev, err := s.CompareAndSet(ctx, "k", NoRevision, "v1")
			if err != nil {
				t.Fatalf("create via CAS: %v", err)
			}
			if rev != RevisionOf("v1") {
				t.Errorf("rev = %d, want %d", rev, RevisionOf("v1"))
			}

			// Creating again with NoRevision must fail: the key exists.
			cur, err := s.CompareAndSet(ctx, "k", NoRevision, "other")
			if !errors.Is(err, ErrRevisionMismatch) {
				t.Fatalf("expected ErrRevisionMismatch, got %v", err)
			}
			if cur != RevisionOf("v1") {
				t.Errorf("current rev = %d, want %d", cur, RevisionOf("v1"))
			}

			rev, err = s.CompareAndSet(ctx, "k", rev, "v2")
			if err != nil {
				t.Fatalf("update via CAS: %v", err)
			}
			v, _, _ := s.Get(ctx, "k")
			if v != "v2" {
				t.Errorf("value = %q, want v2", v)
			}

			// An out-of-band write invalidates the old revision.
			if err := s.Set(ctx, "k", "external"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if _, err := s.CompareAndSet(ctx, "k", rev, "v3"); !errors.Is(err, ErrRevisionMismatch) {
				t.Errorf("expected ErrRevisionMismatch after external write, got %v", err)
			}
			v, _, _ = s.Get(ctx, "k")
			if v != "external" {
				t.Errorf("value = %q, want external", v)
			}
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../etc", "a/b", "..", "with space"} {
				if err := s.Set(ctx, key, "x"); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Set(%q) = %v, want ErrInvalidKey", key, err)
				}
				if _, _, err := s.Get(ctx, key); !errors.Is(err, ErrInvalidKey) {
					t.Errorf("Get(%q) = %v, want ErrInvalidKey", key, err)
				}
			}
		})
	}
}

func TestStore_ConcurrentCompareAndSet_OneWinner(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			base, err := s.CompareAndSet(ctx, "race", NoRevision, "base")
			if err != nil {
				t.Fatalf("seed: %v", err)
			}

			const writers = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.CompareAndSet(ctx, "race", base, string(rune('a'+i)))
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()
			if wins != 1 {
				t.Errorf("expected exactly 1 winning writer, got %d", wins)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Backend-specific tests
// ---------------------------------------------------------------------------

func TestRevisionOf_NeverNoRevision(t *testing.T) {
	if RevisionOf("") == NoRevision {
		t.Error("empty value must not map to NoRevision")
	}
	if RevisionOf("a") == RevisionOf("b") {
		t.Error("distinct values should have distinct revisions")
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Close()
	if err := s.Set(context.Background(), "k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestFileStore_WritesBackupOfPreviousValue(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = s.Set(ctx, "solestyle_database", "first")
	_ = s.Set(ctx, "solestyle_database", "second")

	bak, err := os.ReadFile(filepath.Join(dir, "solestyle_database.json.bak"))
	if err != nil {
		t.Fatalf("read .bak: %v", err)
	}
	if string(bak) != "first" {
		t.Errorf(".bak = %q, want first", bak)
	}
	if _, err := os.Stat(filepath.Join(dir, "solestyle_database.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should not remain after write")
	}
}

func TestFileStore_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := t.TempDir()
	s, _ := NewFileStore(dir, testLogger())
	_ = s.Set(context.Background(), "k", "v")

	info, err := os.Stat(filepath.Join(dir, "k.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %04o, want 0600", perm)
	}
}

func TestFileStore_SharedDirectorySeesWrites(t *testing.T) {
	dir := t.TempDir()
	a, _ := NewFileStore(dir, testLogger())
	b, _ := NewFileStore(dir, testLogger())
	ctx := context.Background()

	rev, _ := a.CompareAndSet(ctx, "shared", NoRevision, "from-a")
	if v, _, _ := b.Get(ctx, "shared"); v != "from-a" {
		t.Fatalf("b sees %q", v)
	}
	_ = b.Set(ctx, "shared", "from-b")
	if _, err := a.CompareAndSet(ctx, "shared", rev, "again-a"); !errors.Is(err, ErrRevisionMismatch) {
		t.Errorf("expected stale write from a to be rejected, got %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLiteStore(ctx, path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "solestyle_users_database", "[]"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2, err := NewSQLiteStore(ctx, path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(ctx, "solestyle_users_database")
	if err != nil || !ok || v != "[]" {
		t.Errorf("after reopen: v=%q ok=%v err=%v", v, ok, err)
	}
}
