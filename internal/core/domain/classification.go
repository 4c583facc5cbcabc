package domain

import "time"

// Category names the specialized path a classified document is routed to.
type Category string

const (
	CategoryIdentity  Category = "identity"
	CategoryContract  Category = "contract"
	CategoryFinancial Category = "financial"
	CategoryDefault   Category = "default"
)

// Classification is the outcome of the rules engine: one document type, one
// category, and the rule trace that produced the decision.
type Classification struct {
	DocumentType string   `json:"document_type"`
	Category     Category `json:"category"`
	Score        float64  `json:"score"`
	RuleTrace    []string `json:"rule_trace,omitempty"`
}

// ClassificationResult is the persisted record, one per document.
type ClassificationResult struct {
	DocumentID   string    `json:"document_id"`
	DocumentType string    `json:"document_type"`
	Category     Category  `json:"category"`
	Score        float64   `json:"score"`
	RuleTrace    []string  `json:"rule_trace,omitempty"`
	RoutedQueue  string    `json:"routed_queue"`
	ClassifiedAt time.Time `json:"classified_at"`
}
