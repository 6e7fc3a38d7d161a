package models

import (
	"time"

	"gorm.io/datatypes"
)

// Revision is a stored re-evaluation of an existing submission.
type Revision struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	SubmissionID  uint                        `gorm:"not null;index" json:"submissionId"`
	Score         int                         `gorm:"not null" json:"score"`
	Feedback      string                      `gorm:"type:text" json:"feedback"`
	Highlights    datatypes.JSONSlice[string] `json:"highlights"`
	HighlightText string                      `gorm:"type:text" json:"highlightSubmitText"`
	APILatencyMs  int64                       `gorm:"column:api_latency_ms" json:"apiLatency"`
	CreatedAt     time.Time                   `json:"createdAt"`
	Submission    Submission                  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
