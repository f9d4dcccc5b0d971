// Package metrics holds the Prometheus collectors of the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the auth counters
const (
	OutcomeSuccess = "success"
)

// Metrics encapsulates the Prometheus instrumentation. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	challenges      *prometheus.CounterVec
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshReuse    prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	challenges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_auth_challenges_total",
		Help: "Challenge requests by outcome",
	}, []string{"outcome"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_auth_logins_total",
		Help: "Signature verifications by outcome",
	}, []string{"outcome"})

	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_auth_refresh_total",
		Help: "Refresh token exchanges by outcome",
	}, []string{"outcome"})

	refreshReuse := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payroll_auth_refresh_reuse_total",
		Help: "Rotated refresh tokens presented again",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payroll_auth_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(challenges, logins, refreshes, refreshReuse, requestDuration)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		challenges:      challenges,
		logins:          logins,
		refreshes:       refreshes,
		refreshReuse:    refreshReuse,
		requestDuration: requestDuration,
	}
}

// Handler exposes the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveChallenge(outcome string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRefreshReuse() {
	if m == nil {
		return
	}
	m.refreshReuse.Inc()
}

// ObserveHTTPRequest records the latency of one HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}
