package domain

import "time"

// ExtractedFields is the raw analysis output persisted once per document.
// The upsert is keyed by document id so duplicate completion notifications
// never append a second row.
type ExtractedFields struct {
	DocumentID   string            `json:"document_id"`
	FullText     string            `json:"full_text"`
	Forms        map[string]string `json:"forms"`
	QueryAnswers map[string]string `json:"query_answers"`
	BlockCount   int               `json:"block_count"`
	PageCount    int               `json:"page_count"`
	Confidence   float64           `json:"confidence"`
	ExtractedAt  time.Time         `json:"extracted_at"`
}
