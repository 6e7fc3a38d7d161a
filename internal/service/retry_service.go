package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/events"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/internal/repository"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

const (
	// DefaultRetrySchedule fires at the top of every hour.
	DefaultRetrySchedule = "0 * * * *"
	// DefaultMaxRetryCount is the number of retry attempts after which a submission stays FAILED.
	DefaultMaxRetryCount = 3

	retryJobURI    = "retry-job"
	retryJobMethod = "AUTO"
)

// ErrRetryInProgress is returned when a retry batch is already running.
var ErrRetryInProgress = errors.New("retry batch already in progress")

var retryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gema",
	Subsystem: "retry",
	Name:      "submissions_total",
	Help:      "Retried submissions by outcome",
}, []string{"outcome"})

// RetryReport summarises one retry batch.
type RetryReport struct {
	Selected  int
	Succeeded int
	Failed    int
	Errors    int
	Duration  time.Duration
}

// RetryConfig configures the retry job.
type RetryConfig struct {
	Schedule      string
	MaxRetryCount int
	Topic         string
}

// RetryService re-evaluates FAILED submissions on a schedule.
type RetryService interface {
	RetryFailed(ctx context.Context) (RetryReport, error)
	Start(ctx context.Context) error
	Stop()
}

type retryService struct {
	submissions repository.SubmissionRepository
	evaluator   ai.Evaluator
	publisher   events.Publisher
	cfg         RetryConfig
	logger      zerolog.Logger
	now         func() time.Time

	running   sync.Mutex
	scheduler *cron.Cron
}

// NewRetryService constructs the retry job.
func NewRetryService(subRepo repository.SubmissionRepository, evaluator ai.Evaluator, publisher events.Publisher, cfg RetryConfig, logger zerolog.Logger) RetryService {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultRetrySchedule
	}
	if cfg.MaxRetryCount <= 0 {
		cfg.MaxRetryCount = DefaultMaxRetryCount
	}
	if cfg.Topic == "" {
		cfg.Topic = events.TopicAPIFailures
	}

	return &retryService{
		submissions: subRepo,
		evaluator:   evaluator,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger.With().Str("component", "retry_service").Logger(),
		now:         time.Now,
	}
}

// RetryFailed processes every retryable submission once, sequentially. A failure on
// one record never stops the batch.
func (s *retryService) RetryFailed(ctx context.Context) (RetryReport, error) {
	if !s.running.TryLock() {
		return RetryReport{}, ErrRetryInProgress
	}
	defer s.running.Unlock()

	startedAt := s.now()
	candidates, err := s.submissions.FindFailed(ctx, s.cfg.MaxRetryCount)
	if err != nil {
		return RetryReport{}, fmt.Errorf("find failed submissions: %w", err)
	}

	report := RetryReport{Selected: len(candidates)}
	for _, submission := range candidates {
		if ctx.Err() != nil {
			break
		}
		s.retryOne(ctx, submission, &report)
	}
	report.Duration = s.now().Sub(startedAt)

	s.logger.Info().
		Int("selected", report.Selected).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("errors", report.Errors).
		Dur("duration", report.Duration).
		Msg("retry batch finished")

	return report, ctx.Err()
}

func (s *retryService) retryOne(ctx context.Context, submission models.Submission, report *RetryReport) {
	logger := s.logger.With().Uint("submission_id", submission.ID).Int("retry_count", submission.RetryCount).Logger()

	result, evalErr := s.evaluator.Evaluate(ctx, submission.SubmitText)
	if evalErr == nil {
		if err := s.submissions.UpdateFields(ctx, submission.ID, completedUpdate(result, true)); err != nil {
			report.Errors++
			retryOutcomes.WithLabelValues("store_error").Inc()
			logger.Error().Err(err).Msg("failed to store retried evaluation")
			return
		}
		report.Succeeded++
		retryOutcomes.WithLabelValues("succeeded").Inc()
		logger.Info().Int("score", result.Score).Msg("retried submission completed")
		return
	}

	report.Failed++
	retryOutcomes.WithLabelValues("failed").Inc()
	logger.Warn().Err(evalErr).Msg("retried submission failed again")

	failed := models.SubmissionStatusFailed
	if err := s.submissions.UpdateFields(ctx, submission.ID, repository.SubmissionUpdate{Status: &failed, IncrementRetry: true}); err != nil {
		report.Errors++
		logger.Error().Err(err).Msg("failed to record retry attempt")
	}

	event := events.FailureEvent{
		TraceID:      submission.TraceID,
		SubmissionID: events.SubmissionIDPtr(submission.ID),
		URI:          retryJobURI,
		Method:       retryJobMethod,
		Message:      evalErr.Error(),
	}
	if err := s.publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
		report.Errors++
		logger.Error().Err(err).Msg("failed to publish retry failure event")
	}
}

// Start registers the batch on the cron schedule. Overlapping firings are skipped.
func (s *retryService) Start(ctx context.Context) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RetryFailed(ctx); err != nil {
			if errors.Is(err, ErrRetryInProgress) {
				s.logger.Warn().Msg("skipping retry firing, previous batch still running")
				return
			}
			s.logger.Error().Err(err).Msg("retry batch failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retry job %q: %w", s.cfg.Schedule, err)
	}

	s.scheduler = scheduler
	scheduler.Start()
	s.logger.Info().Str("schedule", s.cfg.Schedule).Msg("retry job scheduled")
	return nil
}

// Stop halts the schedule and waits for a running batch to finish.
func (s *retryService) Stop() {
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
}
