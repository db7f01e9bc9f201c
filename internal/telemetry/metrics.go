// Package telemetry exposes Prometheus collectors for the pipeline service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs, labeled by terminal status.",
		},
		[]string{"status"},
	)

	pipelineActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_runs",
			Help: "Number of pipeline runs currently in flight.",
		},
	)

	trafficLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "traffic_lookups_total",
			Help: "Total traffic lookups, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	dbKeywordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_keywords_total",
			Help: "Total number of keywords in the database.",
		},
	)

	dbProductsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_products_total",
			Help: "Total number of discovered products in the database.",
		},
	)

	dbProductsWithTraffic = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_products_with_traffic_total",
			Help: "Discovered products carrying a positive traffic estimate.",
		},
	)
)

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePipelineRun counts a finished run by terminal status.
func ObservePipelineRun(status string) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

// SetActiveRuns updates the in-flight run gauge.
func SetActiveRuns(n int) {
	pipelineActiveRuns.Set(float64(n))
}

// ObserveTrafficLookup counts one traffic lookup by outcome
// (enriched, no_data, error).
func ObserveTrafficLookup(outcome string) {
	trafficLookupsTotal.WithLabelValues(outcome).Inc()
}

// SetStoreCounts refreshes the database record gauges.
func SetStoreCounts(keywords, products, withTraffic int64) {
	dbKeywordsTotal.Set(float64(keywords))
	dbProductsTotal.Set(float64(products))
	dbProductsWithTraffic.Set(float64(withTraffic))
}
