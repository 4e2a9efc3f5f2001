package admin

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// clientIP is the connection's peer address. Forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isLocalhost(r *http.Request) bool {
	switch clientIP(r) {
	case "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}

// AuthStatusResponse is the JSON response for GET /admin/api/auth/status.
type AuthStatusResponse struct {
	Localhost       bool `json:"localhost"`
	PasswordEnabled bool `json:"password_enabled"`
	Authenticated   bool `json:"authenticated"`
}

func (h *AdminAPIHandler) passwordEnabled() bool {
	return h.passwordHash != "" && h.hasher != nil
}

// checkPassword verifies basic auth credentials. Any username is accepted.
func (h *AdminAPIHandler) checkPassword(r *http.Request) bool {
	if !h.passwordEnabled() {
		return false
	}
	_, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	match, err := h.hasher.Verify(password, h.passwordHash)
	if err != nil {
		h.logger.Warn("admin password verification failed", "error", err)
		return false
	}
	return match
}

func (h *AdminAPIHandler) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	local := isLocalhost(r)
	h.respondJSON(w, http.StatusOK, AuthStatusResponse{
		Localhost:       local,
		PasswordEnabled: h.passwordEnabled(),
		Authenticated:   local || h.checkPassword(r),
	})
}

// adminAuthMiddleware admits localhost unconditionally. Remote requests
// need HTTP basic auth against the admin password; without a configured
// password they are rejected with 403. Repeated failures from one address
// are throttled with 429.
func (h *AdminAPIHandler) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLocalhost(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !h.passwordEnabled() {
			h.respondError(w, http.StatusForbidden, "admin API requires localhost access")
			return
		}

		ip := clientIP(r)
		if blocked, retryAfter := h.throttle.blocked(ip); blocked {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			h.respondError(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}
		if !h.checkPassword(r) {
			h.throttle.fail(ip)
			h.logger.Warn("admin authentication failed", "remote", ip, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Basic realm="solestyle admin"`)
			h.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		h.throttle.reset(ip)
		next.ServeHTTP(w, r)
	})
}

type failureEntry struct {
	count   int
	resetAt time.Time
}

// failureThrottle counts failed logins per IP. An address that reaches
// maxFailures inside window is blocked until the window ends.
type failureThrottle struct {
	mu          sync.Mutex
	entries     map[string]*failureEntry
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

func newFailureThrottle(maxFailures int, window time.Duration) *failureThrottle {
	return &failureThrottle{
		entries:     make(map[string]*failureEntry),
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
	}
}

// blocked reports whether ip is locked out and the seconds until it is not.
func (t *failureThrottle) blocked(ip string) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for k, e := range t.entries {
		if now.After(e.resetAt) {
			delete(t.entries, k)
		}
	}

	e, ok := t.entries[ip]
	if !ok || e.count < t.maxFailures {
		return false, 0
	}
	retryAfter := int(e.resetAt.Sub(now).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	return true, retryAfter
}

func (t *failureThrottle) fail(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.entries[ip]
	if !ok || now.After(e.resetAt) {
		t.entries[ip] = &failureEntry{count: 1, resetAt: now.Add(t.window)}
		return
	}
	e.count++
}

func (t *failureThrottle) reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, ip)
}
