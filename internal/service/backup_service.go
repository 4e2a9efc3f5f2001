package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/SoleStyle/solestyle/internal/domain/backup"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/user"
)

const instrumentationName = "github.com/SoleStyle/solestyle/internal/service"

// BackupService snapshots the catalog, users and contacts into a backup
// backend and restores them. Restore is a blind overwrite.
type BackupService struct {
	backend  backup.Backend
	catalog  *CatalogService
	users    *UserDirectory
	contacts *ContactService
	logger   *slog.Logger
	tracer   trace.Tracer
	uploaded metric.Int64Counter
	now      func() time.Time
}

// BackupOption configures a BackupService.
type BackupOption func(*backupConfig)

type backupConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	now            func() time.Time
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) BackupOption {
	return func(c *backupConfig) { c.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) BackupOption {
	return func(c *backupConfig) { c.meterProvider = mp }
}

// WithBackupClock overrides the clock used for snapshot timestamps.
func WithBackupClock(now func() time.Time) BackupOption {
	return func(c *backupConfig) { c.now = now }
}

// NewBackupService creates a BackupService.
func NewBackupService(backend backup.Backend, products *CatalogService, users *UserDirectory, contacts *ContactService, logger *slog.Logger, opts ...BackupOption) (*BackupService, error) {
	cfg := backupConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	counter, err := cfg.meterProvider.Meter(instrumentationName).Int64Counter(
		"solestyle.backup.bytes",
		metric.WithDescription("Bytes uploaded to the backup backend"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backup counter: %w", err)
	}
	return &BackupService{
		backend:  backend,
		catalog:  products,
		users:    users,
		contacts: contacts,
		logger:   logger,
		tracer:   cfg.tracerProvider.Tracer(instrumentationName),
		uploaded: counter,
		now:      cfg.now,
	}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Upload captures the current state and stores it in the backend.
func (s *BackupService) Upload(ctx context.Context) (_ *backup.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "BackupService.Upload")
	defer func() { endSpan(span, err) }()

	contacts, err := s.contacts.List(ctx)
	if err != nil {
		return nil, err
	}
	cat := s.catalog.ExportDatabase(ctx)
	now := s.now().UTC()
	snap := backup.Snapshot{
		Products:     cat.Products,
		HeroProducts: cat.HeroProducts,
		Contacts:     contacts,
		Users:        s.users.ExportUserData(ctx).Users,
		Timestamp:    now,
		UploadedAt:   now,
		Version:      backup.Version,
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	span.SetAttributes(
		attribute.Int("app.backup.products", len(snap.Products)),
		attribute.Int("app.backup.users", len(snap.Users)),
		attribute.Int("app.backup.contacts", len(snap.Contacts)),
		attribute.Int("app.backup.bytes", len(blob)),
	)
	if err := s.backend.Put(ctx, blob); err != nil {
		return nil, fmt.Errorf("upload backup: %w", err)
	}
	s.uploaded.Add(ctx, int64(len(blob)))
	s.logger.Info("backup uploaded", "bytes", len(blob), "products", len(snap.Products), "users", len(snap.Users))
	return &snap, nil
}

// Download fetches and decodes the stored backup.
// Returns backup.ErrNoBackup when nothing is stored.
func (s *BackupService) Download(ctx context.Context) (_ *backup.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "BackupService.Download")
	defer func() { endSpan(span, err) }()

	blob, ok, err := s.backend.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("download backup: %w", err)
	}
	if !ok {
		return nil, backup.ErrNoBackup
	}
	span.SetAttributes(attribute.Int("app.backup.bytes", len(blob)))
	return decodeBackup(blob)
}

func decodeBackup(blob []byte) (*backup.Snapshot, error) {
	var snap backup.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", backup.ErrInvalidSnapshot, err)
	}
	if snap.Version != "" && snap.Version != backup.Version {
		return nil, fmt.Errorf("%w: unsupported version %q", backup.ErrInvalidSnapshot, snap.Version)
	}
	if snap.Products == nil {
		snap.Products = []catalog.Product{}
	}
	if snap.HeroProducts == nil {
		snap.HeroProducts = []string{}
	}
	if snap.Users == nil {
		snap.Users = []user.User{}
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = snap.UploadedAt
	}
	return &snap, nil
}

// HasBackup reports whether a backup is stored.
func (s *BackupService) HasBackup(ctx context.Context) (bool, error) {
	return s.backend.Exists(ctx)
}

// Info returns the upload time and byte size of the stored backup, or
// backup.ErrNoBackup.
func (s *BackupService) Info(ctx context.Context) (*backup.Info, error) {
	var (
		blob []byte
		ok   bool
		err  error
	)
	if p, isPeeker := s.backend.(backup.Peeker); isPeeker {
		blob, ok, err = p.Peek(ctx)
	} else {
		blob, ok, err = s.backend.Get(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if !ok {
		return nil, backup.ErrNoBackup
	}
	info := &backup.Info{Size: len(blob)}
	var meta struct {
		UploadedAt time.Time `json:"uploadedAt"`
	}
	if err := json.Unmarshal(blob, &meta); err == nil {
		info.LastModified = meta.UploadedAt
	}
	return info, nil
}

// Delete removes the stored backup.
func (s *BackupService) Delete(ctx context.Context) error {
	if err := s.backend.Delete(ctx); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	s.logger.Info("backup deleted")
	return nil
}

// Restore downloads the backup and overwrites catalog, users and contacts.
// Each store validates its part; a failing part stops the restore and
// earlier parts stay restored.
func (s *BackupService) Restore(ctx context.Context) (_ *backup.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "BackupService.Restore")
	defer func() { endSpan(span, err) }()

	snap, err := s.Download(ctx)
	if err != nil {
		return nil, err
	}

	err = s.catalog.ImportDatabase(ctx, catalog.Snapshot{
		Products:     snap.Products,
		HeroProducts: snap.HeroProducts,
		LastUpdated:  snap.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("restore catalog: %w", err)
	}
	if err = s.users.ImportUserData(ctx, user.Export{Users: snap.Users, ExportDate: snap.Timestamp, Version: user.ExportVersion}); err != nil {
		return nil, fmt.Errorf("restore users: %w", err)
	}
	// A backup without contacts restores an empty list.
	if err = s.contacts.Import(ctx, snap.Contacts); err != nil {
		return nil, fmt.Errorf("restore contacts: %w", err)
	}
	s.logger.Info("backup restored", "products", len(snap.Products), "users", len(snap.Users), "contacts", len(snap.Contacts))
	return snap, nil
}

// IsNoBackup reports whether err means no backup is stored.
func IsNoBackup(err error) bool {
	return errors.Is(err, backup.ErrNoBackup)
}
