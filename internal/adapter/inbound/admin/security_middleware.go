package admin

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	// csrfCookieName is the double-submit cookie; clients echo it in csrfHeader.
	csrfCookieName = "solestyle_csrf_token"
	csrfHeader     = "X-CSRF-Token"
	csrfMaxAge     = 24 * 60 * 60
)

// cspMiddleware sets headers for a JSON-only API: nothing may be loaded,
// framed or cached.
func cspMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; form-action 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

// csrfMiddleware implements double-submit CSRF protection. Safe methods
// receive the cookie when missing. Every other method must echo the cookie
// value in the X-CSRF-Token header, except under /admin/api/auth/.
func csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case safeMethod(r.Method):
			ensureCSRFCookie(w, r)
		case strings.HasPrefix(r.URL.Path, "/admin/api/auth/"):
		case !csrfTokenValid(r):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"CSRF token invalid"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func csrfTokenValid(r *http.Request) bool {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return r.Header.Get(csrfHeader) == cookie.Value
}

// ensureCSRFCookie issues a token unless the request already carries one.
// The cookie is not HttpOnly: scripts read it to fill the header.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    generateCSRFToken(),
		Path:     "/admin",
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   csrfMaxAge,
	})
}

// generateCSRFToken returns 32 random bytes, hex encoded.
func generateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
