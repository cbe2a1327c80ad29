// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "staylens"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimited         prometheus.Counter

	ViewEvaluations       *prometheus.CounterVec
	ViewEvaluationSeconds *prometheus.HistogramVec
	ViewRows              *prometheus.HistogramVec

	DatasetRows    prometheus.Gauge
	DatasetDropped *prometheus.GaugeVec

	WebsocketSessions prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Number of requests rejected by the rate limiter",
		}),

		ViewEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_evaluations_total",
			Help:      "View evaluations by view, outcome status and transport",
		}, []string{"view", "status", "transport"}),

		ViewEvaluationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_evaluation_duration_seconds",
			Help:      "Time spent filtering and aggregating for one view",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"view"}),

		ViewRows: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_filtered_rows",
			Help:      "Number of listings left after filtering for one view",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"view"}),

		DatasetRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Number of listings held in memory",
		}),

		DatasetDropped: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_dropped_rows",
			Help:      "Source rows dropped while cleaning, by reason",
		}, []string{"reason"}),

		WebsocketSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_sessions",
			Help:      "Open websocket sessions",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveView records one view evaluation.
func (m *Metrics) ObserveView(view, status, transport string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ViewEvaluations.WithLabelValues(view, status, transport).Inc()
	m.ViewEvaluationSeconds.WithLabelValues(view).Observe(elapsed.Seconds())
	if rows >= 0 {
		m.ViewRows.WithLabelValues(view).Observe(float64(rows))
	}
}

// SetDataset publishes the loaded dataset's size and cleaning counters.
func (m *Metrics) SetDataset(rows, missingNeighbourhood, invalidPrice int) {
	if m == nil {
		return
	}
	m.DatasetRows.Set(float64(rows))
	m.DatasetDropped.WithLabelValues("missing_neighbourhood").Set(float64(missingNeighbourhood))
	m.DatasetDropped.WithLabelValues("invalid_price").Set(float64(invalidPrice))
}
