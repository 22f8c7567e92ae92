// Package metrics holds the Prometheus collectors shared by the server,
// the analysis engine, the collector and the caches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RequestDuration   *prometheus.HistogramVec
	AnalysisDuration  prometheus.Histogram
	ComponentFailures *prometheus.CounterVec
	CacheRequests     *prometheus.CounterVec
	FetchRequests     *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketlens_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "status"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketlens_deep_analysis_duration_seconds",
				Help:    "Wall time of deep-analysis computations, excluding cache hits",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		ComponentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketlens_component_failures_total",
				Help: "Deep-analysis components that degraded to their empty shape",
			},
			[]string{"component"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketlens_cache_requests_total",
				Help: "Cache lookups by cache name and result (hit, miss, error)",
			},
			[]string{"cache", "result"},
		),
		FetchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketlens_fetch_requests_total",
				Help: "Market data fetches by source and result",
			},
			[]string{"source", "result"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketlens_breaker_state",
				Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
			},
			[]string{"source"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.AnalysisDuration,
		m.ComponentFailures,
		m.CacheRequests,
		m.FetchRequests,
		m.BreakerState,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Observe(d.Seconds())
}

func (m *Metrics) ComponentFailed(component string) {
	if m == nil {
		return
	}
	m.ComponentFailures.WithLabelValues(component).Inc()
}

func (m *Metrics) CacheResult(cache, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) FetchResult(source, result string) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(source, result).Inc()
}

func (m *Metrics) SetBreakerState(source string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(source).Set(state)
}
