package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-essay-api/internal/events"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/internal/repository"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

func TestRetryServiceIncrementsAndPublishesOnFailure(t *testing.T) {
	db := setupServiceDB(t)
	lastTry := seedFailed(t, db, 1, "essay one that keeps failing", 2)
	exhausted := seedFailed(t, db, 2, "essay two already exhausted", 3)

	evaluator := &evaluatorStub{failures: map[string]error{
		lastTry.SubmitText:   errors.New("model unavailable"),
		exhausted.SubmitText: errors.New("model unavailable"),
	}}
	publisher := &publisherStub{}
	svc := NewRetryService(repository.NewSubmissionRepository(db), evaluator, publisher, RetryConfig{}, testLogger())

	report, err := svc.RetryFailed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Selected)
	require.Equal(t, 1, report.Failed)

	updated := reload(t, db, lastTry.ID)
	require.Equal(t, 3, updated.RetryCount)
	require.Equal(t, models.SubmissionStatusFailed, updated.Status)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	require.Equal(t, "trace-1", event.TraceID)
	require.Equal(t, lastTry.ID, *event.SubmissionID)
	require.Equal(t, "retry-job", event.URI)
	require.Equal(t, "AUTO", event.Method)
	require.Equal(t, "model unavailable", event.Message)

	require.Equal(t, 3, reload(t, db, exhausted.ID).RetryCount)
	require.NotContains(t, evaluator.calls, exhausted.SubmitText)

	report, err = svc.RetryFailed(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Selected)
	require.Len(t, publisher.events, 1)
}

func TestRetryServiceCompletesAndCountsAttempt(t *testing.T) {
	db := setupServiceDB(t)
	submission := seedFailed(t, db, 1, "essay that now succeeds", 0)

	evaluator := &evaluatorStub{result: ai.Result{Score: 7, Feedback: "Good.", Highlights: []string{"now"}, AnnotatedText: "essay that <b>now</b> succeeds", LatencyMs: 30}}
	publisher := &publisherStub{}
	svc := NewRetryService(repository.NewSubmissionRepository(db), evaluator, publisher, RetryConfig{}, testLogger())

	report, err := svc.RetryFailed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)

	updated := reload(t, db, submission.ID)
	require.Equal(t, models.SubmissionStatusCompleted, updated.Status)
	require.Equal(t, 1, updated.RetryCount)
	require.Equal(t, 7, *updated.Score)
	require.Equal(t, "essay that <b>now</b> succeeds", updated.HighlightText)
	require.Empty(t, publisher.events)
}

func TestRetryServiceIsolatesPerRecordErrors(t *testing.T) {
	db := setupServiceDB(t)
	first := seedFailed(t, db, 1, "first essay fails again", 0)
	second := seedFailed(t, db, 2, "second essay recovers", 1)

	evaluator := &evaluatorStub{
		result:   ai.Result{Score: 6, Feedback: "Fine."},
		failures: map[string]error{first.SubmitText: errors.New("boom")},
	}
	publisher := &publisherStub{err: events.ErrBusClosed}
	svc := NewRetryService(repository.NewSubmissionRepository(db), evaluator, publisher, RetryConfig{}, testLogger())

	report, err := svc.RetryFailed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Selected)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Succeeded)
	require.Equal(t, 1, report.Errors)

	require.Equal(t, 1, reload(t, db, first.ID).RetryCount)
	recovered := reload(t, db, second.ID)
	require.Equal(t, models.SubmissionStatusCompleted, recovered.Status)
	require.Equal(t, 2, recovered.RetryCount)
}

type blockingEvaluator struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEvaluator) Evaluate(ctx context.Context, _ string) (ai.Result, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return ai.Result{Score: 1, Feedback: "ok"}, nil
}

func TestRetryServiceRejectsOverlappingRuns(t *testing.T) {
	db := setupServiceDB(t)
	seedFailed(t, db, 1, "slow essay", 0)

	evaluator := &blockingEvaluator{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewRetryService(repository.NewSubmissionRepository(db), evaluator, &publisherStub{}, RetryConfig{}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := svc.RetryFailed(context.Background())
		done <- err
	}()

	select {
	case <-evaluator.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first batch never started")
	}

	_, err := svc.RetryFailed(context.Background())
	require.ErrorIs(t, err, ErrRetryInProgress)

	close(evaluator.release)
	require.NoError(t, <-done)
}

func TestRetryServiceStartRejectsBadSchedule(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRetryService(repository.NewSubmissionRepository(db), &evaluatorStub{}, &publisherStub{}, RetryConfig{Schedule: "not a schedule"}, testLogger())
	require.Error(t, svc.Start(context.Background()))
	svc.Stop()

	ok := NewRetryService(repository.NewSubmissionRepository(db), &evaluatorStub{}, &publisherStub{}, RetryConfig{}, testLogger())
	require.NoError(t, ok.Start(context.Background()))
	ok.Stop()
}
