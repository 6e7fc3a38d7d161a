package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/noah-isme/gema-essay-api/internal/events"
)

const missingField = "N/A"

var alertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gema",
	Subsystem: "alerts",
	Name:      "sent_total",
	Help:      "Failure alerts by sender and outcome",
}, []string{"sender", "outcome"})

// DispatcherConfig configures the failure alert consumer.
type DispatcherConfig struct {
	Topic         string
	Group         string
	RatePerSecond float64
	Burst         int
}

// NotificationDispatcher turns failure events into operator alerts.
type NotificationDispatcher struct {
	subscriber events.Subscriber
	sender     AlertSender
	limiter    *rate.Limiter
	cfg        DispatcherConfig
	logger     zerolog.Logger
}

// NewNotificationDispatcher constructs a dispatcher. A non-positive rate disables throttling.
func NewNotificationDispatcher(subscriber events.Subscriber, sender AlertSender, cfg DispatcherConfig, logger zerolog.Logger) *NotificationDispatcher {
	if cfg.Topic == "" {
		cfg.Topic = events.TopicAPIFailures
	}
	if cfg.Group == "" {
		cfg.Group = events.GroupNotification
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &NotificationDispatcher{
		subscriber: subscriber,
		sender:     sender,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		cfg:        cfg,
		logger:     logger.With().Str("component", "notification_dispatcher").Str("sender", sender.Name()).Logger(),
	}
}

// Run consumes the failure topic until ctx is cancelled.
func (d *NotificationDispatcher) Run(ctx context.Context) error {
	d.logger.Info().Str("topic", d.cfg.Topic).Str("group", d.cfg.Group).Msg("notification dispatcher started")
	return d.subscriber.Subscribe(ctx, d.cfg.Topic, d.cfg.Group, d.Handle)
}

// Handle renders and sends one alert. Send errors are returned for the bus to log;
// the event is not redelivered.
func (d *NotificationDispatcher) Handle(ctx context.Context, event events.FailureEvent) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("alert throttle: %w", err)
	}

	if err := d.sender.Send(ctx, RenderAlert(event)); err != nil {
		alertsSent.WithLabelValues(d.sender.Name(), "error").Inc()
		return err
	}

	alertsSent.WithLabelValues(d.sender.Name(), "sent").Inc()
	d.logger.Debug().Str("trace_id", event.TraceID).Msg("failure alert sent")
	return nil
}

// RenderAlert formats the operator message for a failure event. Missing fields render as N/A.
func RenderAlert(event events.FailureEvent) string {
	submission := missingField
	if event.SubmissionID != nil {
		submission = strconv.FormatUint(uint64(*event.SubmissionID), 10)
	}

	var b strings.Builder
	b.WriteString("🚨 API Failure Detected\n")
	fmt.Fprintf(&b, "- traceId: %s\n", orMissing(event.TraceID))
	fmt.Fprintf(&b, "- submissionId: %s\n", submission)
	fmt.Fprintf(&b, "- uri: %s\n", orMissing(event.URI))
	fmt.Fprintf(&b, "- method: %s\n", orMissing(event.Method))
	fmt.Fprintf(&b, "- message: %s", orMissing(event.Message))
	return b.String()
}

func orMissing(value string) string {
	if strings.TrimSpace(value) == "" {
		return missingField
	}
	return value
}
