// Package metrics exposes Prometheus instruments for the proxy and the
// widget refresh loop.
//
// Key metrics:
//   - finboard_upstream_requests_total{provider,operation,outcome}
//   - finboard_upstream_duration_seconds{provider}
//   - finboard_cache_lookups_total{result}
//   - finboard_http_requests_total{method,status}
//   - finboard_widget_refreshes_total{status}
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	WidgetRefreshes  *prometheus.CounterVec
}

// New registers every instrument on a private registry so tests and
// multiple servers in one process do not collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_upstream_requests_total",
			Help: "Vendor API calls by provider, vendor operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finboard_upstream_duration_seconds",
			Help:    "Vendor API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_cache_lookups_total",
			Help: "Normalized payload cache lookups by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_http_requests_total",
			Help: "Served HTTP requests by method and status.",
		}, []string{"method", "status"}),
		WidgetRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_widget_refreshes_total",
			Help: "Completed widget refreshes by resulting render status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.UpstreamRequests, m.UpstreamDuration, m.CacheLookups, m.HTTPRequests, m.WidgetRefreshes)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveUpstream is nil-safe so callers can run without metrics.
func (m *Metrics) ObserveUpstream(provider, operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(provider, operation, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveRefresh(status string) {
	if m == nil {
		return
	}
	m.WidgetRefreshes.WithLabelValues(status).Inc()
}
