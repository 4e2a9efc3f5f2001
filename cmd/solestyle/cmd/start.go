package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/adapter/inbound/admin"
	"github.com/SoleStyle/solestyle/internal/adapter/inbound/http"
	"github.com/SoleStyle/solestyle/internal/config"
	"github.com/SoleStyle/solestyle/internal/domain/event"
	"github.com/SoleStyle/solestyle/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SoleStyle server",
	Long: `Start the SoleStyle server.

The server exposes:
  /api/...        storefront API and the /api/events websocket
  /admin/api/...  admin API (localhost, or basic auth with auth.admin_password_hash)
  /health         component health
  /metrics        Prometheus metrics

Examples:
  # Start with config file settings
  solestyle start

  # Start with in-memory storage and no backup latency
  SOLESTYLE_STORAGE_DRIVER=memory solestyle start --dev`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, no simulated backup latency)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(devMode)
	if err != nil {
		return err
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg)
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "dev", cfg.DevMode)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("solestyle stopped")
	return nil
}

// run wires storage, services and transports, then serves until ctx ends.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startTime := time.Now().UTC()

	// Telemetry first: the traced store and the backup service read the
	// global providers when they are built.
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "solestyle",
		ServiceVersion: Version,
		Tracing:        cfg.Telemetry.Tracing,
		Metrics:        cfg.Telemetry.Metrics,
		MetricInterval: cfg.Telemetry.MetricIntervalDuration(),
		Writer:         os.Stdout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	registry := http.NewRegistry()
	metrics := http.NewMetrics(registry)
	bus := event.NewBus(logger, event.WithObserver(metrics))

	a, err := newApp(ctx, cfg, logger, bus)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close storage", "error", err)
		}
	}()
	logger.Info("storage ready",
		"driver", cfg.Storage.Driver,
		"products", a.catalog.ProductCount(),
		"users", a.users.UserCount(),
	)

	hub := http.NewHub(bus, logger,
		http.WithHubMetrics(metrics),
		http.WithHubOrigins(cfg.Server.AllowedOrigins),
	)
	hubCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	health := http.NewHealthChecker(a.store,
		http.CounterFunc(a.catalog.ProductCount),
		http.CounterFunc(a.users.UserCount),
		hub, Version)

	storeAPI := http.NewStoreAPI(a.catalog, a.users, a.contacts, a.wishlists, a.carts, logger,
		http.WithStoreMetrics(metrics),
	)

	adminOpts := []admin.AdminAPIOption{
		admin.WithCatalogService(a.catalog),
		admin.WithUserDirectory(a.users),
		admin.WithContactService(a.contacts),
		admin.WithBackupService(a.backups),
		admin.WithAPILogger(logger),
		admin.WithBuildInfo(&admin.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}),
		admin.WithStorageDriver(cfg.Storage.Driver),
		admin.WithStartTime(startTime),
	}
	if cfg.Auth.AdminPasswordHash != "" {
		adminOpts = append(adminOpts, admin.WithAdminPassword(cfg.Auth.AdminPasswordHash, a.hasher))
		logger.Info("admin API accepts remote basic auth")
	}
	adminAPI := admin.NewAdminAPIHandler(adminOpts...)

	server := http.NewServer(storeAPI,
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		http.WithLogger(logger),
		http.WithAdminHandler(adminAPI.Routes()),
		http.WithHub(hub),
		http.WithHealthChecker(health),
		http.WithMetrics(metrics, registry),
		http.WithShutdownTimeout(cfg.Server.ShutdownTimeoutDuration()),
	)

	printBanner(Version, cfg.Server.HTTPAddr, cfg.Storage.Driver, cfg.DevMode, a.catalog.ProductCount(), a.users.UserCount())
	return server.Start(ctx)
}

// printBanner writes the startup summary to stderr.
func printBanner(version, httpAddr, driver string, dev bool, products, users int) {
	mode := ""
	if dev {
		mode = " (dev mode)"
	}
	fmt.Fprintf(os.Stderr, "\nSoleStyle %s%s\n", version, mode)
	fmt.Fprintf(os.Stderr, "  Storefront: http://%s/api/products\n", httpAddr)
	fmt.Fprintf(os.Stderr, "  Admin API:  http://%s/admin/api/stats\n", httpAddr)
	fmt.Fprintf(os.Stderr, "  Storage:    %s (%d products, %d users)\n\n", driver, products, users)
}
