package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded        DocumentStatus = "uploaded"
	StatusAnalysisStarted DocumentStatus = "analysis_started"
	StatusExtracted       DocumentStatus = "extracted"
	StatusClassified      DocumentStatus = "classified"
	StatusProcessed       DocumentStatus = "processed"
	StatusFailed          DocumentStatus = "failed"
)

var statusRank = map[DocumentStatus]int{
	StatusUploaded:        0,
	StatusAnalysisStarted: 1,
	StatusExtracted:       2,
	StatusClassified:      3,
	StatusProcessed:       4,
}

// Rank orders the lifecycle ladder for "at or past" gates. Failed is terminal
// and sits outside the ladder; callers check it explicitly.
func (s DocumentStatus) Rank() int {
	rank, ok := statusRank[s]
	if !ok {
		return -1
	}
	return rank
}

// AtOrPast reports whether s has reached the given ladder stage.
func (s DocumentStatus) AtOrPast(other DocumentStatus) bool {
	if s.Rank() < 0 || other.Rank() < 0 {
		return false
	}
	return s.Rank() >= other.Rank()
}

type Document struct {
	ID            string         `json:"id"`
	ClientID      string         `json:"client_id"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	DocumentType  string         `json:"document_type,omitempty"`
	Status        DocumentStatus `json:"status"`
	FailureReason string         `json:"failure_reason,omitempty"`
	ExpiryDate    *time.Time     `json:"expiry_date,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
