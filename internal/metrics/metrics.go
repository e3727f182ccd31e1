package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "enchanted_chat"

// Catalog lookup results.
const (
	CatalogHit   = "hit"
	CatalogMiss  = "miss"
	CatalogError = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	catalogLookups       *prometheus.CounterVec
	catalogFetchDuration prometheus.Histogram
	catalogModels        prometheus.Gauge

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamTokens   *prometheus.CounterVec

	titleOutcomes *prometheus.CounterVec
	titleAttempts prometheus.Histogram

	trackingDropped prometheus.Counter
	trackingWritten *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		catalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "lookups_total",
			Help:      "Model catalog lookups by result.",
		}, []string{"result"}),
		catalogFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream model list fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		catalogModels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "models",
			Help:      "Number of free-tier models in the cached catalog.",
		}),

		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream completion requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream completion latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"endpoint"}),
		upstreamTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "tokens_total",
			Help:      "Tokens reported by the upstream API.",
		}, []string{"kind"}),

		titleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "title",
			Name:      "generations_total",
			Help:      "Title generations by outcome.",
		}, []string{"outcome"}),
		titleAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "title",
			Name:      "attempts",
			Help:      "Attempts used per title generation.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),

		trackingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "request_tracking",
			Name:      "dropped_total",
			Help:      "Usage records dropped because the worker buffer was full.",
		}),
		trackingWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "request_tracking",
			Name:      "writes_total",
			Help:      "Usage record writes by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.catalogLookups,
		m.catalogFetchDuration,
		m.catalogModels,
		m.upstreamRequests,
		m.upstreamLatency,
		m.upstreamTokens,
		m.titleOutcomes,
		m.titleAttempts,
		m.trackingDropped,
		m.trackingWritten,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CatalogLookup(result string) {
	if m == nil {
		return
	}
	m.catalogLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CatalogFetched(duration time.Duration, models int) {
	if m == nil {
		return
	}
	m.catalogFetchDuration.Observe(duration.Seconds())
	m.catalogModels.Set(float64(models))
}

// UpstreamRequest records one completion call.
func (m *Metrics) UpstreamRequest(endpoint, status string, latency time.Duration, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(endpoint, status).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
	if promptTokens > 0 {
		m.upstreamTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.upstreamTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// TitleGenerated records the outcome of one title synthesis.
func (m *Metrics) TitleGenerated(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.titleOutcomes.WithLabelValues(outcome).Inc()
	m.titleAttempts.Observe(float64(attempts))
}

func (m *Metrics) TrackingDropped() {
	if m == nil {
		return
	}
	m.trackingDropped.Inc()
}

func (m *Metrics) TrackingWrite(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.trackingWritten.WithLabelValues(result).Inc()
}
