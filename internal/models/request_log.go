package models

import "time"

// Request log outcomes.
const (
	RequestResultOK     = "ok"
	RequestResultFailed = "failed"
	RequestResultError  = "error"
)

// RequestLog is one row per handled HTTP request.
type RequestLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TraceID      string    `gorm:"size:64;not null;index" json:"traceId"`
	URI          string    `gorm:"size:512;not null" json:"uri"`
	Method       string    `gorm:"size:16;not null" json:"method"`
	HTTPStatus   int       `gorm:"not null" json:"httpStatus"`
	ResultStatus string    `gorm:"size:16;not null;index" json:"resultStatus"`
	LatencyMs    int64     `gorm:"not null" json:"latencyMs"`
	SubmissionID *uint     `gorm:"index" json:"submissionId,omitempty"`
	Message      string    `gorm:"type:text" json:"message,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AllModels lists every table managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{&Student{}, &Submission{}, &Revision{}, &RequestLog{}}
}
