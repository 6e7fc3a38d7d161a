package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/internal/repository"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrDuplicateSubmission is returned when the student already submitted this component.
	ErrDuplicateSubmission = errors.New("already evaluated for this student and component type")
	// ErrInvalidStudentName is returned when nothing is left of the name after sanitising.
	ErrInvalidStudentName = errors.New("student name is empty after sanitising")
)

// ProcessingError reports a server-side failure tied to a stored submission.
type ProcessingError struct {
	SubmissionID uint
	Err          error
}

func (e *ProcessingError) Error() string {
	return e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// SubmissionService orchestrates essay submission workflows.
type SubmissionService interface {
	Create(ctx context.Context, payload dto.SubmissionCreateRequest, traceID string) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	List(ctx context.Context, query dto.PageQuery) ([]dto.SubmissionResponse, int64, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	students    repository.StudentRepository
	evaluator   ai.Evaluator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(subRepo repository.SubmissionRepository, studentRepo repository.StudentRepository, evaluator ai.Evaluator, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		students:    studentRepo,
		evaluator:   evaluator,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) Create(ctx context.Context, payload dto.SubmissionCreateRequest, traceID string) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.StudentName))
	if name == "" {
		return dto.SubmissionResponse{}, ErrInvalidStudentName
	}

	if _, err := s.submissions.FindByStudentAndComponent(ctx, payload.StudentID, payload.ComponentType); err == nil {
		return dto.SubmissionResponse{}, ErrDuplicateSubmission
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, fmt.Errorf("check existing submission: %w", err)
	}

	student := models.Student{ID: payload.StudentID, StudentName: name}
	if err := s.students.Upsert(ctx, &student); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("upsert student: %w", err)
	}

	submission := models.Submission{
		StudentID:     payload.StudentID,
		ComponentType: payload.ComponentType,
		SubmitText:    payload.SubmitText,
		Status:        models.SubmissionStatusPending,
		TraceID:       traceID,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmissionResponse{}, ErrDuplicateSubmission
		}
		return dto.SubmissionResponse{}, fmt.Errorf("create submission: %w", err)
	}

	logger := s.logger.With().Uint("submission_id", submission.ID).Str("trace_id", traceID).Logger()

	result, err := s.evaluator.Evaluate(ctx, submission.SubmitText)
	if err != nil {
		failed := models.SubmissionStatusFailed
		if updateErr := s.submissions.UpdateFields(ctx, submission.ID, repository.SubmissionUpdate{Status: &failed}); updateErr != nil {
			logger.Error().Err(updateErr).Msg("failed to mark submission as failed")
		}
		logger.Warn().Err(err).Msg("submission evaluation failed")
		return dto.SubmissionResponse{}, &ProcessingError{SubmissionID: submission.ID, Err: err}
	}

	if err := s.submissions.UpdateFields(ctx, submission.ID, completedUpdate(result, false)); err != nil {
		return dto.SubmissionResponse{}, &ProcessingError{SubmissionID: submission.ID, Err: fmt.Errorf("store evaluation: %w", err)}
	}

	stored, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("reload submission: %w", err)
	}

	logger.Info().Int("score", result.Score).Msg("submission evaluated")
	return dto.NewSubmissionResponse(stored), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, query dto.PageQuery) ([]dto.SubmissionResponse, int64, error) {
	query = query.Normalize()
	submissions, total, err := s.submissions.List(ctx, query.Page, query.Size)
	if err != nil {
		return nil, 0, err
	}

	return dto.NewSubmissionResponseSlice(submissions), total, nil
}

// completedUpdate stores an evaluation result and marks the submission COMPLETED.
func completedUpdate(result ai.Result, incrementRetry bool) repository.SubmissionUpdate {
	status := models.SubmissionStatusCompleted
	score := result.Score
	feedback := result.Feedback
	highlights := append([]string{}, result.Highlights...)
	annotated := result.AnnotatedText
	latency := result.LatencyMs

	return repository.SubmissionUpdate{
		Status:         &status,
		Score:          &score,
		Feedback:       &feedback,
		Highlights:     &highlights,
		HighlightText:  &annotated,
		APILatencyMs:   &latency,
		IncrementRetry: incrementRetry,
	}
}
