package middleware

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/events"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/internal/observability"
	"github.com/noah-isme/gema-essay-api/internal/utils"
)

const sideEffectTimeout = 5 * time.Second

// RequestLogStore persists one log row per request.
type RequestLogStore interface {
	Create(ctx context.Context, log *models.RequestLog) error
}

// TraceLoggingConfig wires the trace interceptor.
type TraceLoggingConfig struct {
	Logs      RequestLogStore
	Publisher events.Publisher
	Topic     string
	Logger    zerolog.Logger
}

// TraceLogging assigns a trace id to every request, writes exactly one request log
// row, and publishes a failure event when the handler returns a server error. A
// *fiber.Error with a 4xx code, such as an unmatched route, is logged as failed
// without an event. The handler's error is always returned unchanged.
func TraceLogging(cfg TraceLoggingConfig) fiber.Handler {
	observability.RegisterMetrics()
	if cfg.Topic == "" {
		cfg.Topic = events.TopicAPIFailures
	}
	logger := cfg.Logger.With().Str("component", "trace_interceptor").Logger()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		traceID := uuid.NewString()

		c.Locals(TraceIDLocal, traceID)
		c.Locals(utils.RequestStartKey, start)
		c.Set(TraceIDHeader, traceID)
		c.SetUserContext(ContextWithTraceID(c.UserContext(), traceID))

		err := c.Next()
		duration := time.Since(start)

		entry := models.RequestLog{
			TraceID:      traceID,
			URI:          c.OriginalURL(),
			Method:       c.Method(),
			LatencyMs:    duration.Milliseconds(),
			SubmissionID: submissionIDFromRequest(c),
		}

		if err == nil {
			entry.HTTPStatus = c.Response().StatusCode()
			entry.ResultStatus, entry.Message = classifyResponse(c.Response().Body())
		} else {
			entry.HTTPStatus = utils.StatusFromError(err)
			entry.ResultStatus = models.RequestResultError
			entry.Message = err.Error()
			// Unmatched routes and other client errors are not handler failures.
			if entry.HTTPStatus >= fiber.StatusBadRequest && entry.HTTPStatus < fiber.StatusInternalServerError {
				entry.ResultStatus = models.RequestResultFailed
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		ctx = ContextWithTraceID(ctx, traceID)

		requestLogger := logger.With().Str("trace_id", traceID).Logger()
		if cfg.Logs != nil {
			if storeErr := cfg.Logs.Create(ctx, &entry); storeErr != nil {
				observability.RequestLogWrites().WithLabelValues("error").Inc()
				requestLogger.Error().Err(storeErr).Msg("failed to store request log")
			} else {
				observability.RequestLogWrites().WithLabelValues("stored").Inc()
			}
		}

		if entry.ResultStatus == models.RequestResultError && cfg.Publisher != nil {
			event := events.FailureEvent{
				TraceID:      traceID,
				SubmissionID: entry.SubmissionID,
				URI:          entry.URI,
				Method:       entry.Method,
				Message:      entry.Message,
			}
			if pubErr := cfg.Publisher.Publish(ctx, cfg.Topic, event); pubErr != nil {
				observability.FailureEvents().WithLabelValues("error").Inc()
				requestLogger.Error().Err(pubErr).Msg("failed to publish failure event")
			} else {
				observability.FailureEvents().WithLabelValues("published").Inc()
			}
		}

		recordRequest(logger, c, traceID, entry.ResultStatus, entry.HTTPStatus, duration)
		return err
	}
}

// classifyResponse reads the envelope of a completed response.
func classifyResponse(body []byte) (string, string) {
	var envelope struct {
		Result  string      `json:"result"`
		Message interface{} `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil {
		return models.RequestResultOK, ""
	}
	if envelope.Result != utils.ResultFailed {
		return models.RequestResultOK, ""
	}

	message, _ := envelope.Message.(string)
	return models.RequestResultFailed, message
}

func submissionIDFromRequest(c *fiber.Ctx) *uint {
	if value, ok := c.Locals(SubmissionIDLocal).(uint); ok && value != 0 {
		return &value
	}
	for _, param := range []string{"id", "submissionId"} {
		raw := c.Params(param)
		if raw == "" {
			continue
		}
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil && parsed != 0 {
			id := uint(parsed)
			return &id
		}
	}
	return nil
}
