package internal

import "time"

// Run kinds.
const (
	RunKindRefine   = "refine"
	RunKindFeedback = "feedback"
)

// BatchRun records one batch invocation for the history log.
type BatchRun struct {
	ID             string        `json:"id"`
	Kind           string        `json:"kind"`
	SpreadsheetID  string        `json:"spreadsheetId"`
	SourceRange    string        `json:"sourceRange"`
	TargetRange    string        `json:"targetRange"`
	Provider       string        `json:"provider,omitempty"`
	Model          string        `json:"model,omitempty"`
	Success        bool          `json:"success"`
	ProcessedCount int           `json:"processedCount"`
	SuccessCount   int           `json:"successCount"`
	ErrorCount     int           `json:"errorCount"`
	Errors         []string      `json:"errors,omitempty"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}
