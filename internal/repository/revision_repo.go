package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/models"
)

// RevisionFilter pages and orders revision listings.
type RevisionFilter struct {
	Page     int
	PageSize int
	SortDesc bool
}

// RevisionRepository stores re-evaluations of submissions.
type RevisionRepository interface {
	CreateWithSubmissionUpdate(ctx context.Context, revision *models.Revision, update SubmissionUpdate) error
	GetByID(ctx context.Context, id uint) (models.Revision, error)
	List(ctx context.Context, filter RevisionFilter) ([]models.Revision, int64, error)
}

type revisionRepository struct {
	db *gorm.DB
}

// NewRevisionRepository constructs the revision repository.
func NewRevisionRepository(db *gorm.DB) RevisionRepository {
	return &revisionRepository{db: db}
}

// CreateWithSubmissionUpdate stores the revision and refreshes its submission atomically.
func (r *revisionRepository) CreateWithSubmissionUpdate(ctx context.Context, revision *models.Revision, update SubmissionUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Submission").Create(revision).Error; err != nil {
			return err
		}
		return applySubmissionUpdate(tx, revision.SubmissionID, update)
	})
}

func (r *revisionRepository) GetByID(ctx context.Context, id uint) (models.Revision, error) {
	var revision models.Revision
	if err := r.db.WithContext(ctx).First(&revision, id).Error; err != nil {
		return models.Revision{}, err
	}
	return revision, nil
}

func (r *revisionRepository) List(ctx context.Context, filter RevisionFilter) ([]models.Revision, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&models.Revision{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "id ASC"
	if filter.SortDesc {
		order = "id DESC"
	}

	var revisions []models.Revision
	if err := query.Order(order).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&revisions).Error; err != nil {
		return nil, 0, err
	}

	return revisions, total, nil
}
