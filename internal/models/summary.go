package models

// RunSummary is the display projection of one span in a run listing.
type RunSummary struct {
	SpanID     string     `json:"span_id"`
	Operation  string     `json:"operation"`
	DurationMs *int64     `json:"duration_ms,omitempty"`
	Status     StatusCode `json:"status,omitempty"`
	Start      string     `json:"start,omitempty"`
}

// OperationStats aggregates the completed runs of one operation.
// AvgDurationMs is nil when no run in the group recorded a duration.
type OperationStats struct {
	Operation     string `json:"operation"`
	Runs          int    `json:"runs"`
	Success       int    `json:"success"`
	Error         int    `json:"error"`
	SuccessRate   string `json:"success_rate"`
	AvgDurationMs *int64 `json:"avg_duration_ms"`
}
