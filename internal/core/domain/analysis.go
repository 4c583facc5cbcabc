package domain

import "time"

type AnalysisJobStatus string

const (
	JobRunning   AnalysisJobStatus = "running"
	JobCompleted AnalysisJobStatus = "completed"
	JobFailed    AnalysisJobStatus = "failed"
)

// AnalysisJob maps the external service's correlation id back to the owning
// document. The intake coordinator is its sole writer.
type AnalysisJob struct {
	JobID       string            `json:"job_id"`
	DocumentID  string            `json:"document_id"`
	Status      AnalysisJobStatus `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// JobNotification is the completion event delivered by the analysis service.
// It carries the correlation id only, never the document id.
type JobNotification struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

const (
	NotificationCompleted = "completed"
	NotificationFailed    = "failed"
)

// AnalysisResults is the full payload fetched from the analysis service once
// a job completes.
type AnalysisResults struct {
	FullText     string            `json:"full_text"`
	Forms        map[string]string `json:"forms"`
	QueryAnswers map[string]string `json:"query_answers"`
	BlockCount   int               `json:"block_count"`
	PageCount    int               `json:"page_count"`
	Confidence   float64           `json:"confidence"`
}
