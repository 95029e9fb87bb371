package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements RunRecorder with Prometheus collectors for
// the daemon. Use Handler to serve the registry on /metrics.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	exceedancesTotal prometheus.Counter
	locationFailures prometheus.Counter
}

// NewPrometheusRecorder creates a recorder with its own registry, including
// the standard Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &PrometheusRecorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swellwatch_runs_total",
			Help: "Completed alert runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swellwatch_run_duration_seconds",
			Help:    "Wall time of an alert run.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		exceedancesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swellwatch_exceedances_total",
			Help: "Wave height exceedances detected across all runs.",
		}),
		locationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swellwatch_location_failures_total",
			Help: "Locations that failed to fetch or evaluate.",
		}),
	}

	registry.MustRegister(r.runsTotal, r.runDuration, r.exceedancesTotal, r.locationFailures)
	return r
}

// RecordRun updates the run counters and duration histogram.
func (r *PrometheusRecorder) RecordRun(_ context.Context, outcome string, _, exceedances int, duration time.Duration) {
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(duration.Seconds())
	r.exceedancesTotal.Add(float64(exceedances))
}

// RecordLocationFailures updates the failure counter.
func (r *PrometheusRecorder) RecordLocationFailures(_ context.Context, count int) {
	r.locationFailures.Add(float64(count))
}

// Handler returns the HTTP handler serving the recorder's registry.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Compile-time assertion that PrometheusRecorder implements RunRecorder.
var _ RunRecorder = (*PrometheusRecorder)(nil)
