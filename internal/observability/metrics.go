package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	failureEventsTotal   *prometheus.CounterVec
	requestLogWriteTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the request pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_http_requests_total",
			Help: "Total number of API requests served, by outcome.",
		}, []string{"method", "route", "status", "result"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gema_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"method", "route"})

		failureEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_failure_events_published_total",
			Help: "Failure events handed to the event bus, by outcome.",
		}, []string{"outcome"})

		requestLogWriteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_request_log_writes_total",
			Help: "Request log rows written, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, failureEventsTotal, requestLogWriteTotal)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// FailureEvents exposes the failure event publish counter.
func FailureEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return failureEventsTotal
}

// RequestLogWrites exposes the request log write counter.
func RequestLogWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return requestLogWriteTotal
}

// MetricsHandler exposes the Prometheus scrape endpoint, including the collectors
// registered by the AI client and the background jobs.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
