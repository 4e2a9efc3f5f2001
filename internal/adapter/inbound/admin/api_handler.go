// Package admin provides the JSON admin API for the SoleStyle store:
// catalog maintenance, the user directory, contact messages and cloud
// backups.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	celfilter "github.com/SoleStyle/solestyle/internal/adapter/outbound/cel"
	"github.com/SoleStyle/solestyle/internal/domain/backup"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/contact"
	"github.com/SoleStyle/solestyle/internal/domain/user"
	"github.com/SoleStyle/solestyle/internal/service"
)

// maxBodyBytes bounds admin request bodies. Catalog imports are the largest.
const maxBodyBytes = 8 << 20

// AdminAPIHandler provides JSON API endpoints for the admin interface.
type AdminAPIHandler struct {
	catalog       *service.CatalogService
	users         *service.UserDirectory
	contacts      *service.ContactService
	backups       *service.BackupService
	hasher        *user.PasswordHasher
	passwordHash  string
	throttle      *failureThrottle
	buildInfo     *BuildInfo
	storageDriver string
	logger        *slog.Logger
	startTime     time.Time
}

// AdminAPIOption configures an AdminAPIHandler dependency.
type AdminAPIOption func(*AdminAPIHandler)

// WithCatalogService sets the product catalog.
func WithCatalogService(s *service.CatalogService) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.catalog = s }
}

// WithUserDirectory sets the user directory.
func WithUserDirectory(d *service.UserDirectory) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.users = d }
}

// WithContactService sets the contact message store.
func WithContactService(s *service.ContactService) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.contacts = s }
}

// WithBackupService sets the cloud backup service.
func WithBackupService(s *service.BackupService) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.backups = s }
}

// WithAdminPassword enables basic auth for remote requests. hash is an
// argon2id hash checked with hasher.
func WithAdminPassword(hash string, hasher *user.PasswordHasher) AdminAPIOption {
	return func(h *AdminAPIHandler) {
		h.passwordHash = hash
		h.hasher = hasher
	}
}

// WithAPILogger sets the logger.
func WithAPILogger(l *slog.Logger) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.logger = l }
}

// WithBuildInfo sets the build version information.
func WithBuildInfo(info *BuildInfo) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.buildInfo = info }
}

// WithStorageDriver records the active kv driver for /admin/api/system.
func WithStorageDriver(driver string) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.storageDriver = driver }
}

// WithStartTime sets the server start time for uptime calculation.
func WithStartTime(t time.Time) AdminAPIOption {
	return func(h *AdminAPIHandler) { h.startTime = t }
}

// NewAdminAPIHandler creates a new AdminAPIHandler with the given options.
func NewAdminAPIHandler(opts ...AdminAPIOption) *AdminAPIHandler {
	h := &AdminAPIHandler{
		logger:    slog.Default(),
		startTime: time.Now().UTC(),
		throttle:  newFailureThrottle(5, 15*time.Minute),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns an http.Handler with all admin API routes registered.
// Auth status endpoint is accessible without auth middleware.
// All other admin API routes require localhost access or the admin password.
func (h *AdminAPIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Auth status - NOT protected by auth middleware (informational).
	mux.HandleFunc("GET /admin/api/auth/status", h.handleAuthStatus)

	protectedMux := http.NewServeMux()

	// Catalog.
	protectedMux.HandleFunc("GET /admin/api/products", h.handleListProducts)
	protectedMux.HandleFunc("POST /admin/api/products", h.handleCreateProduct)
	protectedMux.HandleFunc("PUT /admin/api/products/{id}", h.handleUpdateProduct)
	protectedMux.HandleFunc("DELETE /admin/api/products/{id}", h.handleDeleteProduct)
	protectedMux.HandleFunc("GET /admin/api/hero", h.handleGetHero)
	protectedMux.HandleFunc("PUT /admin/api/hero", h.handleUpdateHero)
	protectedMux.HandleFunc("POST /admin/api/catalog/reload", h.handleReloadCatalog)
	protectedMux.HandleFunc("GET /admin/api/catalog/export", h.handleExportCatalog)
	protectedMux.HandleFunc("POST /admin/api/catalog/import", h.handleImportCatalog)

	// User directory.
	protectedMux.HandleFunc("GET /admin/api/users", h.handleListUsers)
	protectedMux.HandleFunc("DELETE /admin/api/users", h.handleClearUsers)
	protectedMux.HandleFunc("GET /admin/api/users/stats", h.handleUserStats)
	protectedMux.HandleFunc("GET /admin/api/users/export", h.handleExportUsers)
	protectedMux.HandleFunc("POST /admin/api/users/import", h.handleImportUsers)
	protectedMux.HandleFunc("POST /admin/api/users/reload", h.handleReloadUsers)
	protectedMux.HandleFunc("DELETE /admin/api/users/{email}", h.handleDeleteUser)
	protectedMux.HandleFunc("PUT /admin/api/users/{email}/password", h.handleSetPassword)

	// Contact messages.
	protectedMux.HandleFunc("GET /admin/api/contacts", h.handleListContacts)
	protectedMux.HandleFunc("GET /admin/api/contacts/export", h.handleExportContacts)
	protectedMux.HandleFunc("POST /admin/api/contacts/{id}/read", h.handleMarkContactRead)
	protectedMux.HandleFunc("DELETE /admin/api/contacts/{id}", h.handleDeleteContact)

	// Cloud backup.
	protectedMux.HandleFunc("GET /admin/api/cloud", h.handleCloudInfo)
	protectedMux.HandleFunc("POST /admin/api/cloud/upload", h.handleCloudUpload)
	protectedMux.HandleFunc("POST /admin/api/cloud/restore", h.handleCloudRestore)
	protectedMux.HandleFunc("DELETE /admin/api/cloud", h.handleCloudDelete)

	// Stats and system info.
	protectedMux.HandleFunc("GET /admin/api/stats", h.handleGetStats)
	protectedMux.HandleFunc("GET /admin/api/system", h.handleSystemInfo)

	mux.Handle("/admin/api/", h.adminAuthMiddleware(protectedMux))

	// Wrap with CSRF middleware (validates tokens on POST/PUT/DELETE).
	csrfProtected := csrfMiddleware(mux)
	// Wrap with CSP security headers.
	return cspMiddleware(csrfProtected)
}

// --- JSON helper methods ---

// respondJSON writes a JSON response with the given status code and data.
func (h *AdminAPIHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status code and message.
func (h *AdminAPIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given value.
func (h *AdminAPIHandler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// pathParam extracts a named path parameter from the request URL.
func (h *AdminAPIHandler) pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// unavailable reports whether dep is missing and answers 503 if so.
func (h *AdminAPIHandler) unavailable(w http.ResponseWriter, missing bool, what string) bool {
	if missing {
		h.respondError(w, http.StatusServiceUnavailable, what+" not configured")
	}
	return missing
}

// respondServiceError maps domain errors to status codes.
func (h *AdminAPIHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, contact.ErrContactNotFound),
		errors.Is(err, backup.ErrNoBackup):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrStaleSnapshot),
		errors.Is(err, user.ErrStaleDirectory),
		errors.Is(err, user.ErrUserExists):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, user.ErrInvalidUser),
		errors.Is(err, user.ErrEmptyPassword),
		errors.Is(err, service.ErrFilterUnavailable),
		errors.Is(err, celfilter.ErrInvalidExpression):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backup.ErrInvalidSnapshot):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("admin request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
