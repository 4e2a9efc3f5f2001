package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/cel"
	"github.com/SoleStyle/solestyle/internal/adapter/outbound/cloud"
	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/adapter/outbound/repository"
	"github.com/SoleStyle/solestyle/internal/config"
	"github.com/SoleStyle/solestyle/internal/domain/event"
	"github.com/SoleStyle/solestyle/internal/domain/user"
	"github.com/SoleStyle/solestyle/internal/service"
)

// app holds the wired stores. Commands other than start build one too,
// so offline maintenance goes through the same services as the server.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  kv.Store
	// backupStore is set only when backup.storage names its own backend.
	backupStore kv.Store
	bus         *event.Bus
	hasher *user.PasswordHasher

	catalog   *service.CatalogService
	users     *service.UserDirectory
	contacts  *service.ContactService
	wishlists *service.WishlistService
	carts     *service.CartService
	backups   *service.BackupService
}

// Close releases the storage backends.
func (a *app) Close() error {
	err := a.store.Close()
	if a.backupStore != nil {
		err = errors.Join(err, a.backupStore.Close())
	}
	return err
}

// newLogger builds the stderr text logger. Dev mode forces debug.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads and validates the config. dev overrides dev_mode.
func loadConfig(dev bool) (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dev {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// openStore opens the primary storage backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	return openStorage(ctx, cfg.Storage, cfg.Telemetry.Tracing, logger)
}

// openBackupStore opens backup.storage, or returns nil when the backup
// shares the primary backend.
func openBackupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	if cfg.Backup.Storage == nil {
		return nil, nil
	}
	store, err := openStorage(ctx, *cfg.Backup.Storage, cfg.Telemetry.Tracing, logger.With("store", "backup"))
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return store, nil
}

// openStorage opens the kv driver described by sc. With tracing on, every
// call gets a span from the global tracer provider.
func openStorage(ctx context.Context, sc config.StorageConfig, tracing bool, logger *slog.Logger) (kv.Store, error) {
	var (
		store kv.Store
		err   error
	)
	switch sc.Driver {
	case "memory":
		store = kv.NewMemoryStore()
	case "file":
		store, err = kv.NewFileStore(sc.Dir, logger)
	case "sqlite":
		store, err = kv.NewSQLiteStore(ctx, sc.SQLitePath, logger)
	case "redis":
		store, err = kv.NewRedisStore(ctx, sc.RedisAddr, sc.RedisPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", sc.Driver, err)
	}
	if tracing {
		store = kv.NewTracedStore(store, otel.GetTracerProvider(), sc.Driver)
	}
	return store, nil
}

// newApp opens storage and initializes every service. bus may be nil,
// in which case a private bus is created.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, bus *event.Bus) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	backupStore, err := openBackupStore(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	a, err := buildApp(ctx, cfg, logger, store, backupStore, bus)
	if err != nil {
		err = errors.Join(err, store.Close())
		if backupStore != nil {
			err = errors.Join(err, backupStore.Close())
		}
		return nil, err
	}
	return a, nil
}

// buildApp wires the services over store. A nil backupStore keeps the
// backup blob in store.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, store, backupStore kv.Store, bus *event.Bus) (*app, error) {
	if bus == nil {
		bus = event.NewBus(logger)
	}
	policy := service.ConflictPolicy(cfg.Storage.ConflictPolicy)

	filter, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("create product filter: %w", err)
	}
	products := service.NewCatalogService(repository.NewCatalogRepository(store), bus, logger,
		service.WithConflictPolicy(policy),
		service.WithProductFilter(filter),
	)
	if err := products.Init(ctx); err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	hasher := user.NewPasswordHasher(user.PasswordParams{
		MemoryKiB:   cfg.Auth.PasswordMemoryKiB,
		Iterations:  cfg.Auth.PasswordIterations,
		Parallelism: cfg.Auth.PasswordParallelism,
	})
	users := service.NewUserDirectory(repository.NewUserRepository(store), repository.NewSessionRepository(store), hasher, bus, logger,
		service.WithUserConflictPolicy(policy),
	)
	if err := users.Init(ctx); err != nil {
		return nil, fmt.Errorf("init user directory: %w", err)
	}

	contacts := service.NewContactService(repository.NewContactRepository(store), bus, logger)
	wishlists := service.NewWishlistService(repository.NewWishlistRepository(store), products, logger)
	carts := service.NewCartService(repository.NewCartRepository(store), products, logger)

	upload, download, remove := cfg.Backup.Delays()
	blobStore := store
	if backupStore != nil {
		blobStore = backupStore
	}
	backend := cloud.NewKVBackend(blobStore, logger,
		cloud.WithKey(cfg.Backup.Key),
		cloud.WithLatency(cloud.Latency{Upload: upload, Download: download, Delete: remove}),
	)
	backups, err := service.NewBackupService(backend, products, users, contacts, logger,
		service.WithTracerProvider(otel.GetTracerProvider()),
		service.WithMeterProvider(otel.GetMeterProvider()),
	)
	if err != nil {
		return nil, fmt.Errorf("create backup service: %w", err)
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		backupStore: backupStore,
		bus:         bus,
		hasher:      hasher,
		catalog:     products,
		users:       users,
		contacts:    contacts,
		wishlists:   wishlists,
		carts:       carts,
		backups:     backups,
	}, nil
}

// withApp loads config and runs fn against a freshly opened app.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close storage", "error", cerr)
		}
	}()
	return fn(ctx, a)
}
