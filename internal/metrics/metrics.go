// Package metrics exposes Prometheus collectors for the archiver service.
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

var (
	scrapeImagesTotal         *prometheus.CounterVec
	scrapeBytesTotal          *prometheus.CounterVec
	scrapeCycleSkippedTotal   prometheus.Counter
	scrapeCycleDurationSecs   prometheus.Histogram
	scrapeCycleRunning        prometheus.Gauge
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSecs   *prometheus.HistogramVec
	metadataStoreRetriesTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapeImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cctv_scrape_images_total",
				Help: "Total snapshot outcomes per cycle, labeled by highway and outcome.",
			},
			[]string{"highway", "outcome"},
		)

		scrapeBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cctv_scrape_bytes_total",
				Help: "Total image bytes archived, labeled by highway.",
			},
			[]string{"highway"},
		)

		scrapeCycleSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cctv_scrape_cycles_skipped_total",
				Help: "Ticks skipped because the previous cycle was still running.",
			},
		)

		scrapeCycleDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cctv_scrape_cycle_duration_seconds",
				Help:    "Histogram of full scrape cycle durations.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		scrapeCycleRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cctv_scrape_cycle_running",
				Help: "1 while a scrape cycle is in flight.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		metadataStoreRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cctv_metadata_store_retries_total",
				Help: "Retries issued against the metadata store.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSnapshot records the outcome of one camera snapshot.
// Outcome is one of succeeded, failed, duplicate.
func ObserveSnapshot(highway, outcome string, bytes int) {
	if scrapeImagesTotal == nil {
		return
	}
	scrapeImagesTotal.WithLabelValues(highway, outcome).Inc()
	if bytes > 0 {
		scrapeBytesTotal.WithLabelValues(highway).Add(float64(bytes))
	}
}

// ObserveCycleSkipped counts an overlap-skipped scheduler tick.
func ObserveCycleSkipped() {
	if scrapeCycleSkippedTotal == nil {
		return
	}
	scrapeCycleSkippedTotal.Inc()
}

// CycleStarted flags a cycle in flight and returns a done func that
// records its duration.
func CycleStarted() func() {
	if scrapeCycleRunning == nil {
		return func() {}
	}
	scrapeCycleRunning.Set(1)
	start := time.Now()
	return func() {
		scrapeCycleRunning.Set(0)
		scrapeCycleDurationSecs.Observe(time.Since(start).Seconds())
	}
}

// ObserveStoreRetry counts one metadata store retry.
func ObserveStoreRetry() {
	if metadataStoreRetriesTotal == nil {
		return
	}
	metadataStoreRetriesTotal.Inc()
}

// ObserveHTTPRequest records a completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}
