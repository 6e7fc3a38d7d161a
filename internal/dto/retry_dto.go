package dto

// RetryReportResponse summarises one retry batch.
type RetryReportResponse struct {
	Selected  int   `json:"selected"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Errors    int   `json:"errors"`
	Duration  int64 `json:"durationMs"`
}
