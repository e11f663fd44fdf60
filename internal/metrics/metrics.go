// Package metrics exposes the marketplace counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons.
const (
	ReasonValidation  = "validation"
	ReasonRateLimited = "rate_limited"
	ReasonStorage     = "storage"
)

// Notification results.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	listingsCreated  prometheus.Counter
	listingsRejected *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	eventsDropped    prometheus.Counter
	pendingSwept     prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		listingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "aimarket_listings_created_total",
			Help: "Total number of listings accepted for moderation",
		}),
		listingsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aimarket_listings_rejected_total",
			Help: "Total number of refused listing writes by reason",
		}, []string{"reason"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aimarket_notifications_total",
			Help: "Total number of new-listing notifications by result",
		}, []string{"result"}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "aimarket_events_dropped_total",
			Help: "Total number of change events dropped because a subscriber was full",
		}),
		pendingSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "aimarket_pending_swept_total",
			Help: "Total number of unapproved listings removed after the pending TTL",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aimarket_http_requests_total",
			Help: "Total number of HTTP requests by method and status class",
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) ListingCreated() {
	if m == nil {
		return
	}
	m.listingsCreated.Inc()
}

func (m *Metrics) ListingRejected(reason string) {
	if m == nil {
		return
	}
	m.listingsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// EventDropped matches the events.Bus drop callback.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) PendingSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingSwept.Add(float64(n))
}

// HTTPRequest counts one served request; status is bucketed to its class (2xx, 4xx...).
func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

// Registry returns the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
