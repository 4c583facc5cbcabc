package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type ExpiryAlertRepository struct {
	db *sql.DB
}

func NewExpiryAlertRepository(db *sql.DB) *ExpiryAlertRepository {
	return &ExpiryAlertRepository{db: db}
}

const expiringColumns = `d.id, d.client_id, COALESCE(c.name, ''), COALESCE(c.contact_email, ''), d.document_type, d.expiry_date`

// ListDue returns processed documents expiring inside [from, to] whose client
// has not yet been alerted within the given window day. The NOT EXISTS guard
// is what makes a second sweep on the same day a no-op.
func (r *ExpiryAlertRepository) ListDue(ctx context.Context, from, to time.Time, windowDay string) ([]domain.ExpiringDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+expiringColumns+`
FROM documents d
LEFT JOIN clients c ON c.id = d.client_id
WHERE d.status = $1
  AND d.expiry_date IS NOT NULL
  AND d.expiry_date BETWEEN $2 AND $3
  AND NOT EXISTS (
	SELECT 1 FROM expiry_alerts a
	WHERE a.document_id = d.id AND a.window_day = $4
  )
ORDER BY d.expiry_date
`, string(domain.StatusProcessed), from, to, windowDay)
	if err != nil {
		return nil, fmt.Errorf("list due documents: %w", err)
	}
	defer rows.Close()

	return collectExpiring(rows)
}

func (r *ExpiryAlertRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]domain.ExpiringDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+expiringColumns+`
FROM documents d
LEFT JOIN clients c ON c.id = d.client_id
WHERE d.status = $1
  AND d.expiry_date IS NOT NULL
  AND d.expiry_date BETWEEN $2 AND $3
ORDER BY d.expiry_date
`, string(domain.StatusProcessed), from, to)
	if err != nil {
		return nil, fmt.Errorf("list expiring documents: %w", err)
	}
	defer rows.Close()

	return collectExpiring(rows)
}

// RecordAlert inserts the alert row for (document, window day). The false
// return means another sweep already claimed this window.
func (r *ExpiryAlertRepository) RecordAlert(ctx context.Context, alert *domain.ExpiryAlert) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO expiry_alerts (document_id, window_day, expiry_date, sent_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (document_id, window_day) DO NOTHING
`, alert.DocumentID, alert.WindowDay, alert.ExpiryDate, alert.SentAt)
	if err != nil {
		return false, fmt.Errorf("record expiry alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record alert rows affected: %w", err)
	}
	return affected == 1, nil
}

func collectExpiring(rows *sql.Rows) ([]domain.ExpiringDocument, error) {
	var docs []domain.ExpiringDocument
	for rows.Next() {
		var doc domain.ExpiringDocument
		err := rows.Scan(
			&doc.DocumentID, &doc.ClientID, &doc.ClientName,
			&doc.ContactEmail, &doc.DocumentType, &doc.ExpiryDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan expiring document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiring documents: %w", err)
	}
	return docs, nil
}
