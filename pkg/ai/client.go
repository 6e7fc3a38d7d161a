package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of AI evaluation requests",
	}, []string{"provider"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of AI evaluation failures",
	}, []string{"provider"})
)

// Client evaluates essays through a Completer and coerces whatever comes back.
type Client struct {
	completer Completer
	prompt    PromptConfig
	tracer    trace.Tracer
	logger    zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewClient builds an evaluation client. Zero prompt fields fall back to the defaults.
func NewClient(completer Completer, prompt PromptConfig, logger zerolog.Logger) (*Client, error) {
	if completer == nil {
		return nil, fmt.Errorf("ai completer is required")
	}

	defaults := DefaultPromptConfig()
	if prompt.System == "" {
		prompt.System = defaults.System
	}
	if prompt.Temperature <= 0 {
		prompt.Temperature = defaults.Temperature
	}
	if prompt.MaxTokens <= 0 {
		prompt.MaxTokens = defaults.MaxTokens
	}

	return &Client{
		completer: completer,
		prompt:    prompt,
		tracer:    otel.Tracer("github.com/noah-isme/gema-essay-api/pkg/ai"),
		logger:    logger.With().Str("component", "evaluation_client").Str("provider", completer.Provider()).Logger(),
		now:       time.Now,
	}, nil
}

// WithTimeout bounds every upstream call. Zero disables the bound.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// Evaluate calls the model once for submitText. It only fails with *EvaluationError,
// and only when the upstream call fails.
func (c *Client) Evaluate(parent context.Context, submitText string) (Result, error) {
	provider := c.completer.Provider()
	ctx, span := c.tracer.Start(parent, "ai.evaluate", trace.WithAttributes(
		attribute.String("ai.provider", provider),
		attribute.Int("essay.length", len(submitText)),
	))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startedAt := c.now()
	c.logger.Info().Msg("calling ai evaluator")

	raw, err := c.completer.Complete(ctx, Prompt{
		Model:       c.prompt.Model,
		System:      c.prompt.System,
		User:        submitText,
		Temperature: c.prompt.Temperature,
		MaxTokens:   c.prompt.MaxTokens,
	})
	latency := c.now().Sub(startedAt)
	aiDuration.WithLabelValues(provider).Observe(latency.Seconds())

	if err != nil {
		aiFailures.WithLabelValues(provider).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error().Err(err).Int64("latency_ms", latency.Milliseconds()).Msg("ai evaluation failed")
		return Result{}, &EvaluationError{Message: err.Error(), Err: err}
	}

	result := Coerce(raw, submitText)
	result.LatencyMs = latencyMillis(latency)

	span.SetAttributes(attribute.Int("essay.score", result.Score))
	c.logger.Info().
		Int64("latency_ms", result.LatencyMs).
		Int("score", result.Score).
		Int("highlights", len(result.Highlights)).
		Msg("ai evaluation completed")

	return result, nil
}

func latencyMillis(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
