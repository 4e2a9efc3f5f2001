package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts the storefront API, the admin API, the websocket hub and the
// operational endpoints on one listener.
type Server struct {
	store           *StoreAPI
	server          *http.Server
	addr            string
	allowedOrigins  []string
	logger          *slog.Logger
	adminHandler    http.Handler // Optional admin API
	hub             *Hub
	healthChecker   *HealthChecker
	metrics         *Metrics
	registry        *prometheus.Registry
	shutdownTimeout time.Duration
	listener        net.Listener
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding protection.
// Same-host origins are always accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAdminHandler mounts h under /admin/.
func WithAdminHandler(h http.Handler) Option {
	return func(s *Server) {
		s.adminHandler = h
	}
}

// WithHub serves websocket notifications on /api/events.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) {
		s.healthChecker = hc
	}
}

// WithMetrics uses m and reg instead of a private registry. The caller
// registers m on reg (NewMetrics does this), so the bus and the hub can
// share the same collectors.
func WithMetrics(m *Metrics, reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = m
		s.registry = reg
	}
}

// WithShutdownTimeout bounds graceful shutdown. Default is 10s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithListener serves on l instead of listening on the configured address.
func WithListener(l net.Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// NewServer creates a server for the storefront API.
func NewServer(store *StoreAPI, opts ...Option) *Server {
	s := &Server{
		store:           store,
		addr:            "127.0.0.1:8080",
		allowedOrigins:  []string{},
		logger:          slog.Default(),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.metrics = NewMetrics(s.registry)
	}
	return s
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler builds the full route tree.
//
// Middleware order (outermost first):
//  1. MetricsMiddleware - must be outermost to capture full duration
//  2. RequestID - extract/generate request ID and enrich logger
//  3. DNSRebinding - Origin check on /api routes
func (s *Server) Handler() http.Handler {
	var api http.Handler = s.store.Routes()
	api = DNSRebindingProtection(s.allowedOrigins)(api)

	mux := http.NewServeMux()
	if s.adminHandler != nil {
		mux.Handle("/admin/", s.adminHandler)
		mux.Handle("/admin", s.adminHandler)
	}
	if s.hub != nil {
		mux.Handle("GET /api/events", s.hub)
	}
	mux.Handle("/api/", api)
	if s.healthChecker != nil {
		mux.Handle("/health", s.healthChecker.Handler())
	} else {
		mux.Handle("/health", healthHandler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	// Favicon handler to prevent browser 500 errors
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var handler http.Handler = mux
	handler = RequestIDMiddleware(s.logger)(handler)
	handler = MetricsMiddleware(s.metrics)(handler)
	return handler
}

// healthHandler is the fallback /health when no checker is configured.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
}

// Start begins accepting HTTP connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Info("starting HTTP server", "addr", s.listener.Addr().String())
			err = s.server.Serve(s.listener)
		} else {
			s.logger.Info("starting HTTP server", "addr", s.addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}
