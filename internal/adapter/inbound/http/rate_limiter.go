package http

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// rateLimiter counts requests per client IP in fixed windows. Expired
// windows are swept at most once per window length.
type rateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	length    time.Duration
	nextSweep time.Time
	now       func() time.Time
}

func newRateLimiter(limit int, length time.Duration) *rateLimiter {
	return &rateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     time.Now,
	}
}

// allow records a request from ip. When the limit is reached it returns
// false and the whole seconds until the window resets, at least 1.
func (rl *rateLimiter) allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.After(rl.nextSweep) {
		for k, w := range rl.windows {
			if now.After(w.resetAt) {
				delete(rl.windows, k)
			}
		}
		rl.nextSweep = now.Add(rl.length)
	}

	w := rl.windows[ip]
	if w == nil || now.After(w.resetAt) {
		rl.windows[ip] = &window{count: 1, resetAt: now.Add(rl.length)}
		return true, 0
	}
	if w.count < rl.limit {
		w.count++
		return true, 0
	}
	return false, max(1, int(w.resetAt.Sub(now).Seconds())+1)
}

// remoteIP is RemoteAddr without the port. Forwarding headers are ignored.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isLocalhost(r *http.Request) bool {
	switch remoteIP(r) {
	case "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}

// rateLimitMiddleware answers 429 with Retry-After once a remote client
// exceeds limiter. Loopback clients and a nil limiter are not limited.
func rateLimitMiddleware(limiter *rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLocalhost(r) {
			if ok, retry := limiter.allow(remoteIP(r)); !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
