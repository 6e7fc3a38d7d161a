package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/internal/repository"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

// ErrRevisionNotFound indicates the requested revision does not exist.
var ErrRevisionNotFound = errors.New("revision not found")

// RevisionService re-evaluates stored submissions and keeps their history.
type RevisionService interface {
	Reevaluate(ctx context.Context, submissionID uint) (dto.RevisionResponse, error)
	Get(ctx context.Context, id uint) (dto.RevisionResponse, error)
	List(ctx context.Context, query dto.RevisionListQuery) ([]dto.RevisionResponse, int64, error)
}

type revisionService struct {
	revisions   repository.RevisionRepository
	submissions repository.SubmissionRepository
	evaluator   ai.Evaluator
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewRevisionService constructs a RevisionService.
func NewRevisionService(revisionRepo repository.RevisionRepository, subRepo repository.SubmissionRepository, evaluator ai.Evaluator, validate *validator.Validate, logger zerolog.Logger) RevisionService {
	return &revisionService{
		revisions:   revisionRepo,
		submissions: subRepo,
		evaluator:   evaluator,
		validator:   validate,
		logger:      logger.With().Str("component", "revision_service").Logger(),
	}
}

func (s *revisionService) Reevaluate(ctx context.Context, submissionID uint) (dto.RevisionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RevisionResponse{}, ErrSubmissionNotFound
		}
		return dto.RevisionResponse{}, err
	}

	result, err := s.evaluator.Evaluate(ctx, submission.SubmitText)
	if err != nil {
		return dto.RevisionResponse{}, &ProcessingError{SubmissionID: submission.ID, Err: err}
	}

	revision := models.Revision{
		SubmissionID:  submission.ID,
		Score:         result.Score,
		Feedback:      result.Feedback,
		Highlights:    datatypes.JSONSlice[string](append([]string{}, result.Highlights...)),
		HighlightText: result.AnnotatedText,
		APILatencyMs:  result.LatencyMs,
	}
	if err := s.revisions.CreateWithSubmissionUpdate(ctx, &revision, completedUpdate(result, false)); err != nil {
		return dto.RevisionResponse{}, &ProcessingError{SubmissionID: submission.ID, Err: fmt.Errorf("store revision: %w", err)}
	}

	s.logger.Info().Uint("submission_id", submission.ID).Uint("revision_id", revision.ID).Int("score", revision.Score).Msg("submission re-evaluated")
	return dto.NewRevisionResponse(revision), nil
}

func (s *revisionService) Get(ctx context.Context, id uint) (dto.RevisionResponse, error) {
	revision, err := s.revisions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RevisionResponse{}, ErrRevisionNotFound
		}
		return dto.RevisionResponse{}, err
	}
	return dto.NewRevisionResponse(revision), nil
}

func (s *revisionService) List(ctx context.Context, query dto.RevisionListQuery) ([]dto.RevisionResponse, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, err
	}
	page := query.PageQuery.Normalize()

	revisions, total, err := s.revisions.List(ctx, repository.RevisionFilter{
		Page:     page.Page,
		PageSize: page.Size,
		SortDesc: query.Sort != "asc",
	})
	if err != nil {
		return nil, 0, err
	}
	return dto.NewRevisionResponseSlice(revisions), total, nil
}
