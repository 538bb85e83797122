// Package metrics exposes Prometheus collectors for the upload runner.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploadsTotal               *prometheus.CounterVec
	uploadDurationSeconds      *prometheus.HistogramVec
	chainStepsTotal            *prometheus.CounterVec
	queueDepth                 prometheus.Gauge
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		uploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upload_runner_uploads_total",
				Help: "Total file uploads, labeled by target and result kind.",
			},
			[]string{"target", "result"},
		)

		uploadDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_runner_upload_duration_seconds",
				Help:    "Wall time per file task, labeled by target.",
				Buckets: []float64{0.25, 1, 5, 15, 30, 60, 120, 180},
			},
			[]string{"target"},
		)

		chainStepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upload_runner_chain_steps_total",
				Help: "Pre-request chain steps executed, labeled by result.",
			},
			[]string{"result"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "upload_runner_queue_depth",
				Help: "File tasks waiting in the work queue.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "upload_runner_active_workers",
				Help: "Number of workers currently processing a task.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_runner_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"target"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
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
	})
}

// SanitizeTarget normalizes a target identifier or URL into a lowercase host label.
// It returns "unknown" if nothing usable remains.
func SanitizeTarget(raw string) string {
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpload records the outcome and duration of one file task.
func ObserveUpload(target, result string, duration time.Duration) {
	Init()
	label := SanitizeTarget(target)
	uploadsTotal.WithLabelValues(label, result).Inc()
	uploadDurationSeconds.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveChainStep counts a pre-request step by result ("ok" or "error").
func ObserveChainStep(result string) {
	Init()
	chainStepsTotal.WithLabelValues(result).Inc()
}

// SetQueueDepth reports the current queue length.
func SetQueueDepth(n int) {
	Init()
	queueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(target string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(SanitizeTarget(target)).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
