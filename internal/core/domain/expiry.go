package domain

import "time"

// AlertWindow is the calendar-day granularity at which repeated sweeps are
// deduplicated: at most one alert per document per window.
func AlertWindow(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ExpiryAlert records that a notification was sent for a document within a
// given window day.
type ExpiryAlert struct {
	DocumentID string    `json:"document_id"`
	WindowDay  string    `json:"window_day"`
	ExpiryDate time.Time `json:"expiry_date"`
	SentAt     time.Time `json:"sent_at"`
}

// ExpiringDocument is the sweep's read model: document plus the contact data
// needed to notify its client.
type ExpiringDocument struct {
	DocumentID   string    `json:"document_id"`
	ClientID     string    `json:"client_id"`
	ClientName   string    `json:"client_name"`
	ContactEmail string    `json:"contact_email"`
	DocumentType string    `json:"document_type"`
	ExpiryDate   time.Time `json:"expiry_date"`
}

// SweepSummary reports one sweep run.
type SweepSummary struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExpiryStats buckets near-expiry documents by days remaining.
type ExpiryStats struct {
	Within5Days  int       `json:"within_5_days"`
	Within15Days int       `json:"within_15_days"`
	Within30Days int       `json:"within_30_days"`
	Total        int       `json:"total"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Client is the slice of the client record this core reads.
type Client struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Segment      string `json:"segment,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// MailMessage is handed to the mail-relay collaborator.
type MailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind"`
}
