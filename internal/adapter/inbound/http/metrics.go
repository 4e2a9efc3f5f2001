package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SoleStyle/solestyle/internal/domain/event"
)

// Metrics holds all Prometheus metrics for the server.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	EventsPublished  *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec
	WebsocketClients prometheus.Gauge
	LoginAttempts    *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solestyle",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "solestyle",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		EventsPublished: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solestyle",
				Name:      "events_published_total",
				Help:      "Change notifications published on the bus",
			},
			[]string{"topic"},
		),
		HandlerFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solestyle",
				Name:      "event_handler_failures_total",
				Help:      "Bus handlers that returned an error or panicked",
			},
			[]string{"topic"},
		),
		WebsocketClients: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "solestyle",
				Name:      "websocket_clients",
				Help:      "Connected /api/events clients",
			},
		),
		LoginAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "solestyle",
				Name:      "login_attempts_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"}, // result=ok/new_user/invalid/error
		),
	}
}

// Published implements event.Observer.
func (m *Metrics) Published(topic event.Topic) {
	m.EventsPublished.WithLabelValues(string(topic)).Inc()
}

// HandlerFailed implements event.Observer.
func (m *Metrics) HandlerFailed(topic event.Topic) {
	m.HandlerFailures.WithLabelValues(string(topic)).Inc()
}

var _ event.Observer = (*Metrics)(nil)
