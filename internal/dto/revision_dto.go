package dto

import (
	"time"

	"github.com/noah-isme/gema-essay-api/internal/models"
)

// RevisionListQuery pages and sorts revision listings.
type RevisionListQuery struct {
	PageQuery
	Sort string `query:"sort" validate:"omitempty,oneof=asc desc"`
}

// RevisionResponse describes a stored re-evaluation.
type RevisionResponse struct {
	ID                  uint      `json:"id"`
	SubmissionID        uint      `json:"submissionId"`
	Score               int       `json:"score"`
	Feedback            string    `json:"feedback"`
	Highlights          []string  `json:"highlights"`
	HighlightSubmitText string    `json:"highlightSubmitText"`
	APILatency          int64     `json:"apiLatency"`
	CreatedAt           time.Time `json:"createdAt"`
}

// NewRevisionResponse converts a Revision model into a DTO.
func NewRevisionResponse(model models.Revision) RevisionResponse {
	highlights := []string(model.Highlights)
	if highlights == nil {
		highlights = []string{}
	}
	return RevisionResponse{
		ID:                  model.ID,
		SubmissionID:        model.SubmissionID,
		Score:               model.Score,
		Feedback:            model.Feedback,
		Highlights:          highlights,
		HighlightSubmitText: model.HighlightText,
		APILatency:          model.APILatencyMs,
		CreatedAt:           model.CreatedAt,
	}
}

// NewRevisionResponseSlice converts a slice of revisions.
func NewRevisionResponseSlice(items []models.Revision) []RevisionResponse {
	responses := make([]RevisionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewRevisionResponse(item))
	}
	return responses
}
