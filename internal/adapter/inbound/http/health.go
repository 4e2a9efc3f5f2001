package http

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
)

// probeKey is read on every health check. It is never written.
const probeKey = "solestyle_health_probe"

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the /health body. Checks maps a component to "ok", an
// error string, or a count.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// Counter reports the size of an in-memory collection.
type Counter interface {
	Count() int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func() int

func (f CounterFunc) Count() int { return f() }

// HealthChecker reports storage reachability and collection sizes. Only
// storage affects the overall status.
type HealthChecker struct {
	store        kv.Store
	counters     map[string]Counter
	hub          *Hub
	version      string
	probeTimeout time.Duration
}

// NewHealthChecker accepts nil for any component that is not running.
func NewHealthChecker(store kv.Store, products, users Counter, hub *Hub, version string) *HealthChecker {
	counters := make(map[string]Counter, 2)
	if products != nil {
		counters["products"] = products
	}
	if users != nil {
		counters["users"] = users
	}
	return &HealthChecker{
		store:        store,
		counters:     counters,
		hub:          hub,
		version:      version,
		probeTimeout: 2 * time.Second,
	}
}

func (h *HealthChecker) probeStorage(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()
	_, _, err := h.store.Get(ctx, probeKey)
	return err
}

func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Status:  statusHealthy,
		Checks:  map[string]string{"goroutines": strconv.Itoa(runtime.NumGoroutine())},
		Version: h.version,
	}

	switch {
	case h.store == nil:
		resp.Checks["storage"] = "not configured"
	default:
		if err := h.probeStorage(ctx); err != nil {
			resp.Checks["storage"] = "error: " + err.Error()
			resp.Status = statusUnhealthy
		} else {
			resp.Checks["storage"] = "ok"
		}
	}

	for name, c := range h.counters {
		resp.Checks[name] = strconv.Itoa(c.Count())
	}
	if h.hub != nil {
		resp.Checks["websocket_clients"] = strconv.Itoa(h.hub.ClientCount())
	}
	return resp
}

// Handler serves Check as JSON: 200 when healthy, 503 otherwise.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		code := http.StatusOK
		if resp.Status != statusHealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
