package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission lifecycle states.
const (
	SubmissionStatusPending   = "PENDING"
	SubmissionStatusCompleted = "COMPLETED"
	SubmissionStatusFailed    = "FAILED"
)

// Component types accepted for evaluation.
const (
	ComponentEssayWriting = "Essay Writing"
	ComponentSpeaking     = "Speaking"
	ComponentEssay        = "Essay"
)

// ComponentTypes lists every accepted component type.
var ComponentTypes = []string{ComponentEssayWriting, ComponentSpeaking, ComponentEssay}

// Submission is one essay and the latest evaluation stored for it.
type Submission struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	StudentID     uint                        `gorm:"not null;uniqueIndex:idx_submission_student_component" json:"studentId"`
	ComponentType string                      `gorm:"size:32;not null;uniqueIndex:idx_submission_student_component" json:"componentType"`
	SubmitText    string                      `gorm:"type:text;not null" json:"submitText"`
	Status        string                      `gorm:"size:16;not null;index" json:"status"`
	RetryCount    int                         `gorm:"not null;default:0" json:"retryCount"`
	TraceID       string                      `gorm:"size:64" json:"traceId,omitempty"`
	Score         *int                        `json:"score"`
	Feedback      string                      `gorm:"type:text" json:"feedback"`
	Highlights    datatypes.JSONSlice[string] `json:"highlights"`
	HighlightText string                      `gorm:"type:text" json:"highlightSubmitText"`
	APILatencyMs  int64                       `gorm:"column:api_latency_ms" json:"apiLatency"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
	Student       Student                     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsRetryable reports whether the retry job may still pick the submission up.
func (s Submission) IsRetryable(maxRetry int) bool {
	return s.Status == SubmissionStatusFailed && s.RetryCount < maxRetry
}
