package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/observability"
)

// recordRequest feeds Prometheus and writes the structured access log line.
func recordRequest(logger zerolog.Logger, c *fiber.Ctx, traceID, result string, status int, duration time.Duration) {
	route := routeTemplate(c)
	method := c.Method()
	statusLabel := strconv.Itoa(status)

	observability.HTTPRequests().WithLabelValues(method, route, statusLabel, result).Inc()
	observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())

	latencyMs := float64(duration) / float64(time.Millisecond)
	requestLogger := logger.With().
		Str("trace_id", traceID).
		Str("route", route).
		Str("method", method).
		Int("status", status).
		Str("result", result).
		Float64("latency_ms", latencyMs).
		Str("latency_bucket", latencyBucket(duration)).
		Logger()

	switch {
	case status >= fiber.StatusInternalServerError:
		requestLogger.Error().Msg("request failed")
	case status >= fiber.StatusBadRequest || result != "ok":
		requestLogger.Warn().Msg("request completed with failure")
	default:
		requestLogger.Info().Msg("request completed")
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 25*time.Millisecond:
		return "<=25ms"
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= 500*time.Millisecond:
		return "<=500ms"
	default:
		return ">500ms"
	}
}
