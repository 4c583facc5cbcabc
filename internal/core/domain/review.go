package domain

import "time"

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewResolved ReviewStatus = "resolved"
)

type ReviewDecision string

const (
	ReviewApproved ReviewDecision = "approved"
	ReviewRejected ReviewDecision = "rejected"
)

// ReviewItem is a failed document surfaced to the manual-review surface.
type ReviewItem struct {
	DocumentID string         `json:"document_id"`
	ReasonCode string         `json:"reason_code"`
	Status     ReviewStatus   `json:"status"`
	Decision   ReviewDecision `json:"decision,omitempty"`
	Note       string         `json:"note,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// ReviewStats summarizes the review backlog.
type ReviewStats struct {
	Pending    int            `json:"pending"`
	Resolved   int            `json:"resolved"`
	ByReason   map[string]int `json:"by_reason"`
	ComputedAt time.Time      `json:"computed_at"`
}
