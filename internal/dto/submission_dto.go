package dto

import (
	"time"

	"github.com/noah-isme/gema-essay-api/internal/models"
)

// SubmissionCreateRequest is the JSON body for essay submission.
type SubmissionCreateRequest struct {
	StudentID     uint   `json:"studentId" validate:"required,gt=0"`
	StudentName   string `json:"studentName" validate:"required,min=1,max=100"`
	ComponentType string `json:"componentType" validate:"required,component_type"`
	SubmitText    string `json:"submitText" validate:"required,min=20"`
}

// PageQuery holds page and size query parameters.
type PageQuery struct {
	Page int `query:"page"`
	Size int `query:"size"`
}

// Normalize clamps size to 1..100 and page to at least 1.
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size <= 0 {
		q.Size = 20
	}
	if q.Size > 100 {
		q.Size = 100
	}
	return q
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID                  uint      `json:"id"`
	StudentID           uint      `json:"studentId"`
	StudentName         string    `json:"studentName"`
	ComponentType       string    `json:"componentType"`
	Status              string    `json:"status"`
	RetryCount          int       `json:"retryCount"`
	Score               *int      `json:"score"`
	Feedback            string    `json:"feedback"`
	Highlights          []string  `json:"highlights"`
	SubmitText          string    `json:"submitText"`
	HighlightSubmitText string    `json:"highlightSubmitText"`
	APILatency          int64     `json:"apiLatency"`
	TraceID             string    `json:"traceId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	highlights := []string(model.Highlights)
	if highlights == nil {
		highlights = []string{}
	}

	return SubmissionResponse{
		ID:                  model.ID,
		StudentID:           model.StudentID,
		StudentName:         model.Student.StudentName,
		ComponentType:       model.ComponentType,
		Status:              model.Status,
		RetryCount:          model.RetryCount,
		Score:               model.Score,
		Feedback:            model.Feedback,
		Highlights:          highlights,
		SubmitText:          model.SubmitText,
		HighlightSubmitText: model.HighlightText,
		APILatency:          model.APILatencyMs,
		TraceID:             model.TraceID,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts a slice of models.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}
