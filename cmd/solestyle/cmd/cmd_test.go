package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/config"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a validated dev config for driver.
func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := &config.Config{DevMode: true}
	cfg.Storage.Driver = driver
	cfg.Storage.Dir = t.TempDir()
	cfg.Auth.PasswordMemoryKiB = 64
	cfg.SetDefaults()
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestCommands_Registered(t *testing.T) {
	want := map[string][]string{
		"start":         nil,
		"stop":          nil,
		"version":       nil,
		"reset":         nil,
		"hash-password": nil,
		"backup":        {"delete", "download", "info", "restore", "upload"},
		"catalog":       {"export", "import", "search", "seed"},
		"users":         {"list", "set-password", "stats"},
	}
	got := make(map[string][]string)
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; !ok {
			continue
		}
		var subs []string
		for _, sc := range c.Commands() {
			subs = append(subs, sc.Name())
		}
		got[c.Name()] = subs
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("command tree mismatch (-want +got):\n%s", diff)
	}
}

func TestStartCmd_DevFlag(t *testing.T) {
	f := startCmd.Flags().Lookup("dev")
	if f == nil {
		t.Fatal("start has no --dev flag")
	}
	if f.DefValue != "false" {
		t.Errorf("--dev default = %q, want false", f.DefValue)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPIDFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	if got := readPIDFile(path); got != os.Getpid() {
		t.Errorf("readPIDFile = %d, want %d", got, os.Getpid())
	}
	if got := readPIDFile(filepath.Join(t.TempDir(), "missing.pid")); got != 0 {
		t.Errorf("missing file pid = %d, want 0", got)
	}
}

func TestResetTargets(t *testing.T) {
	file := testConfig(t, "file")
	if got := resetTargets(file); len(got) != 1 || got[0].path != file.Storage.Dir {
		t.Errorf("file targets = %+v", got)
	}

	sqlite := testConfig(t, "sqlite")
	got := resetTargets(sqlite)
	if len(got) != 3 || got[0].path != sqlite.Storage.SQLitePath {
		t.Errorf("sqlite targets = %+v", got)
	}

	if got := resetTargets(testConfig(t, "memory")); got != nil {
		t.Errorf("memory targets = %+v, want none", got)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	if !confirm(strings.NewReader("y\n"), &out, "really?") {
		t.Error("y should confirm")
	}
	if confirm(strings.NewReader("n\n"), &out, "") {
		t.Error("n should abort")
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("output %q lacks Aborted.", out.String())
	}
}

func TestSnapshotCodec(t *testing.T) {
	seed, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for _, format := range []string{"json", "yaml"} {
		data, err := encodeSnapshot(seed, format)
		if err != nil {
			t.Fatalf("encode %s: %v", format, err)
		}
		back, err := decodeSnapshot(data, "catalog."+format)
		if err != nil {
			t.Fatalf("decode %s: %v", format, err)
		}
		if len(back.Products) != len(seed.Products) {
			t.Errorf("%s: decoded %d products, want %d", format, len(back.Products), len(seed.Products))
		}
	}
	if _, err := encodeSnapshot(seed, "xml"); err == nil {
		t.Error("xml format should be rejected")
	}
}

func TestNewApp_WiresServices(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "file")

	a, err := newApp(ctx, cfg, quietLogger(), nil)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if a.catalog.ProductCount() == 0 {
		t.Error("catalog not seeded")
	}
	if _, err := a.users.RegisterUser(ctx, "ana@example.com", "Ana", "pw", ""); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err := a.backups.Upload(ctx); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second app over the same directory sees the persisted data.
	b, err := newApp(ctx, cfg, quietLogger(), nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if b.users.UserCount() != 1 {
		t.Errorf("UserCount after reopen = %d, want 1", b.users.UserCount())
	}
	if ok, err := b.backups.HasBackup(ctx); err != nil || !ok {
		t.Errorf("HasBackup = %v, %v", ok, err)
	}
}

func TestOpenStore_Tracing(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Telemetry.Tracing = true
	store, err := openStore(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*kv.TracedStore); !ok {
		t.Errorf("store = %T, want *kv.TracedStore", store)
	}
}

func TestPrintProducts(t *testing.T) {
	var out bytes.Buffer
	printProducts(&out, []catalog.Product{{ID: "1", Name: "Milano Oxford", Category: "luxurious", Price: 289.99, InStock: true}})
	if !strings.Contains(out.String(), "Milano Oxford") || !strings.Contains(out.String(), "289.99") {
		t.Errorf("output = %q", out.String())
	}
}

func TestVersionCmd_Output(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(out.String(), "solestyle "+Version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestWaitForExit_LiveProcessTimesOut(t *testing.T) {
	self, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if waitForExit(ctx, self, 10*time.Millisecond) {
		t.Error("current process reported as exited")
	}
}

func TestRunStop_NoPIDFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))
	err := runStop(stopCmd, nil)
	if !errors.Is(err, errNotRunning) {
		t.Errorf("err = %v, want errNotRunning", err)
	}
}

func TestNewApp_SeparateBackupStorage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "file")
	backupDir := t.TempDir()
	cfg.Backup.Storage = &config.StorageConfig{Driver: "file"}
	cfg.Backup.Storage.Dir = backupDir
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	a, err := newApp(ctx, cfg, quietLogger(), nil)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if a.backupStore == nil {
		t.Fatal("backup store not opened")
	}
	if _, err := a.backups.Upload(ctx); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, ok, _ := a.store.Get(ctx, cfg.Backup.Key); ok {
		t.Error("backup blob written to the primary store")
	}
	if _, ok, _ := a.backupStore.Get(ctx, cfg.Backup.Key); !ok {
		t.Error("backup blob missing from the backup store")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(backupDir, cfg.Backup.Key+".json")); err != nil {
		t.Errorf("backup file not under %s: %v", backupDir, err)
	}
}
