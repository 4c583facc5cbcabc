package domain

import "time"

// ClientView is the consolidated per-client completeness view. It is fully
// replaced on every aggregation run, never patched field by field.
type ClientView struct {
	ClientID          string    `json:"client_id"`
	CompletenessScore float64   `json:"completeness_score"`
	HasIdentity       bool      `json:"has_identity"`
	HasContract       bool      `json:"has_contract"`
	HasFinancial      bool      `json:"has_financial"`
	TotalDocuments    int       `json:"total_documents"`
	ProcessedCount    int       `json:"processed_count"`
	FailedCount       int       `json:"failed_count"`
	RecomputedAt      time.Time `json:"recomputed_at"`
}
