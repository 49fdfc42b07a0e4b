// Package metrics exposes Prometheus collectors for the enricher service.
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
	enrichmentsTotal           *prometheus.CounterVec
	llmStagesTotal             *prometheus.CounterVec
	drainItemsTotal            *prometheus.CounterVec
	callbacksTotal             *prometheus.CounterVec
	crawlPagesTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	activeCallbackWorkers      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_enrichments_total",
				Help: "Total number of enrichment calls, labeled by result code.",
			},
			[]string{"code"},
		)

		llmStagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_llm_stages_total",
				Help: "Total number of LLM stage runs, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		drainItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_drain_items_total",
				Help: "Total number of queued submissions processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		callbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_callbacks_total",
				Help: "Total number of webhook deliveries, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enricher_crawl_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enricher_rate_limit_delays_seconds",
				Help:    "Histogram of per-domain rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		activeCallbackWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enricher_callback_active_workers",
				Help: "Number of callback workers currently processing a task.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEnrichment counts one orchestrator outcome.
func ObserveEnrichment(code int) {
	Init()
	enrichmentsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveStage counts one LLM stage outcome ("ok", "empty", "error", "skipped").
func ObserveStage(stage, outcome string) {
	Init()
	llmStagesTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveDrainItem counts one queued item as "success" or "failure".
func ObserveDrainItem(outcome string) {
	Init()
	drainItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCallback counts one webhook delivery outcome.
func ObserveCallback(outcome string) {
	Init()
	callbacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveCrawl counts a fetched page for the URL's host.
func ObserveCrawl(site string, status string) {
	Init()
	crawlPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active callback workers gauge.
func IncActiveWorkers() {
	Init()
	activeCallbackWorkers.Inc()
}

// DecActiveWorkers decrements the active callback workers gauge.
func DecActiveWorkers() {
	Init()
	activeCallbackWorkers.Dec()
}
