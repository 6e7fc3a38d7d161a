package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/models"
)

// SubmissionUpdate lists the columns to change on a submission. Nil fields are left untouched.
type SubmissionUpdate struct {
	Status         *string
	Score          *int
	Feedback       *string
	Highlights     *[]string
	HighlightText  *string
	APILatencyMs   *int64
	TraceID        *string
	IncrementRetry bool
}

// SubmissionRepository defines data operations for essay submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	FindByStudentAndComponent(ctx context.Context, studentID uint, componentType string) (models.Submission, error)
	List(ctx context.Context, page, pageSize int) ([]models.Submission, int64, error)
	FindFailed(ctx context.Context, maxRetry int) ([]models.Submission, error)
	UpdateFields(ctx context.Context, id uint, update SubmissionUpdate) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Student").Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Preload("Student").First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) FindByStudentAndComponent(ctx context.Context, studentID uint, componentType string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND component_type = ?", studentID, componentType).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, page, pageSize int) ([]models.Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.Submission
	if err := query.Preload("Student").
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

// FindFailed returns FAILED submissions that still have retries left, oldest first.
func (r *submissionRepository) FindFailed(ctx context.Context, maxRetry int) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", models.SubmissionStatusFailed, maxRetry).
		Order("id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) UpdateFields(ctx context.Context, id uint, update SubmissionUpdate) error {
	return applySubmissionUpdate(r.db.WithContext(ctx), id, update)
}

func applySubmissionUpdate(db *gorm.DB, id uint, update SubmissionUpdate) error {
	values := map[string]interface{}{}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.Score != nil {
		values["score"] = *update.Score
	}
	if update.Feedback != nil {
		values["feedback"] = *update.Feedback
	}
	if update.Highlights != nil {
		values["highlights"] = datatypes.JSONSlice[string](*update.Highlights)
	}
	if update.HighlightText != nil {
		values["highlight_text"] = *update.HighlightText
	}
	if update.APILatencyMs != nil {
		values["api_latency_ms"] = *update.APILatencyMs
	}
	if update.TraceID != nil {
		values["trace_id"] = *update.TraceID
	}
	if update.IncrementRetry {
		values["retry_count"] = gorm.Expr("retry_count + ?", 1)
	}
	if len(values) == 0 {
		return nil
	}

	result := db.Model(&models.Submission{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
