package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/models"
)

// RequestLogRepository stores one row per handled request.
type RequestLogRepository interface {
	Create(ctx context.Context, log *models.RequestLog) error
	ListByTraceID(ctx context.Context, traceID string) ([]models.RequestLog, error)
}

type requestLogRepository struct {
	db *gorm.DB
}

// NewRequestLogRepository constructs the request log repository.
func NewRequestLogRepository(db *gorm.DB) RequestLogRepository {
	return &requestLogRepository{db: db}
}

func (r *requestLogRepository) Create(ctx context.Context, log *models.RequestLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *requestLogRepository) ListByTraceID(ctx context.Context, traceID string) ([]models.RequestLog, error) {
	var logs []models.RequestLog
	if err := r.db.WithContext(ctx).
		Where("trace_id = ?", traceID).
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
