package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/internal/repository"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

func TestRevisionServiceReevaluatesAndLists(t *testing.T) {
	db := setupServiceDB(t)
	submission := seedFailed(t, db, 1, "an essay worth another look", 3)

	evaluator := &evaluatorStub{result: ai.Result{Score: 9, Feedback: "Much better.", Highlights: []string{"another look"}, AnnotatedText: "an essay worth <b>another look</b>"}}
	svc := NewRevisionService(repository.NewRevisionRepository(db), repository.NewSubmissionRepository(db), evaluator, dto.NewValidator(), testLogger())

	revision, err := svc.Reevaluate(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, 9, revision.Score)
	require.Equal(t, submission.ID, revision.SubmissionID)

	updated := reload(t, db, submission.ID)
	require.Equal(t, models.SubmissionStatusCompleted, updated.Status)
	require.Equal(t, 9, *updated.Score)
	require.Equal(t, 3, updated.RetryCount)

	fetched, err := svc.Get(context.Background(), revision.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"another look"}, fetched.Highlights)

	items, total, err := svc.List(context.Background(), dto.RevisionListQuery{Sort: "asc"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)

	_, _, err = svc.List(context.Background(), dto.RevisionListQuery{Sort: "random"})
	require.Error(t, err)
}

func TestRevisionServiceErrors(t *testing.T) {
	db := setupServiceDB(t)
	submission := seedFailed(t, db, 1, "an essay the model chokes on", 0)

	evaluator := &evaluatorStub{failures: map[string]error{submission.SubmitText: errors.New("timeout")}}
	svc := NewRevisionService(repository.NewRevisionRepository(db), repository.NewSubmissionRepository(db), evaluator, dto.NewValidator(), testLogger())

	_, err := svc.Reevaluate(context.Background(), 999)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = svc.Reevaluate(context.Background(), submission.ID)
	var processingErr *ProcessingError
	require.ErrorAs(t, err, &processingErr)
	require.Equal(t, submission.ID, processingErr.SubmissionID)

	_, err = svc.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrRevisionNotFound)
}
