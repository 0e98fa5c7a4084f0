// Package metrics exposes Prometheus collectors for crawl runs.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch attempt outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	pagesCachedTotal           prometheus.Counter
	cachedBytesTotal           prometheus.Counter
	recordsWrittenTotal        prometheus.Counter
	extractionFailuresTotal    prometheus.Counter
	activeWorkers              *prometheus.GaugeVec
	throttleDelaySeconds       *prometheus.HistogramVec
	queueDepth                 *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagecrawl_fetch_attempts_total",
				Help: "Total number of page fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		pagesCachedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagecrawl_pages_cached_total",
				Help: "Total number of pages written to the page cache.",
			},
		)

		cachedBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagecrawl_cached_bytes_total",
				Help: "Total number of body bytes written to the page cache.",
			},
		)

		recordsWrittenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagecrawl_records_written_total",
				Help: "Total number of records handed to the output writer.",
			},
		)

		extractionFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagecrawl_extraction_failures_total",
				Help: "Total number of pages whose markup could not be extracted.",
			},
		)

		activeWorkers = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagecrawl_active_workers",
				Help: "Number of running workers, labeled by pool.",
			},
			[]string{"pool"},
		)

		throttleDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagecrawl_throttle_delay_seconds",
				Help:    "Histogram of throttle wait durations, labeled by stage.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"stage"},
		)

		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagecrawl_queue_depth",
				Help: "Items buffered in a work queue, sampled on enqueue.",
			},
			[]string{"queue"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagecrawl_http_requests_total",
				Help: "Total number of requests served by the metrics endpoint, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagecrawl_http_request_duration_seconds",
				Help:    "Histogram of metrics endpoint latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one fetch attempt.
func ObserveFetchAttempt(outcome string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObservePageCached counts a cached page and its size.
func ObservePageCached(bytes int) {
	Init()
	pagesCachedTotal.Inc()
	if bytes > 0 {
		cachedBytesTotal.Add(float64(bytes))
	}
}

// AddRecordsWritten adds n to the records counter.
func AddRecordsWritten(n int) {
	Init()
	if n > 0 {
		recordsWrittenTotal.Add(float64(n))
	}
}

// ObserveExtractionFailure counts a page that yielded no records due to bad markup.
func ObserveExtractionFailure() {
	Init()
	extractionFailuresTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge for pool.
func IncActiveWorkers(pool string) {
	Init()
	activeWorkers.WithLabelValues(pool).Inc()
}

// DecActiveWorkers decrements the active workers gauge for pool.
func DecActiveWorkers(pool string) {
	Init()
	activeWorkers.WithLabelValues(pool).Dec()
}

// ObserveThrottleDelay records how long a stage waited on its throttle.
func ObserveThrottleDelay(stage string, d time.Duration) {
	Init()
	throttleDelaySeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// SetQueueDepth records the number of buffered items in a queue.
func SetQueueDepth(queue string, n int) {
	Init()
	queueDepth.WithLabelValues(queue).Set(float64(n))
}

// ObserveHTTPRequest records one request served by the metrics endpoint.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
