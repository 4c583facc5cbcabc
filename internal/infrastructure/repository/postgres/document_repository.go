package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, client_id, filename, mime_type, storage_path, document_type, status, failure_reason, expiry_date, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, client_id, filename, mime_type, storage_path, document_type, status, failure_reason, expiry_date, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.ClientID, doc.Filename, doc.MimeType, doc.StoragePath, doc.DocumentType,
		string(doc.Status), doc.FailureReason, doc.ExpiryDate, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// Transition is the compare-and-set on the status ladder. It reports
// ErrStatusConflict when the document exists but its status is not the
// expected one, which callers treat as "someone else got here first".
func (r *DocumentRepository) Transition(ctx context.Context, id string, from, to domain.DocumentStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
`, id, string(from), string(to), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: either the document is missing or its status moved on.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return domain.WrapError(domain.ErrStatusConflict, "transition document",
		fmt.Errorf("id %s: expected %s, found %s", id, from, current.Status))
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, failure_reason = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.StatusFailed), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SetDocumentType(ctx context.Context, id, documentType string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET document_type = $2, updated_at = $3
WHERE id = $1
`, id, documentType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set document type: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SetExpiryDate(ctx context.Context, id string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET expiry_date = $2, updated_at = $3
WHERE id = $1
`, id, expiry, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set expiry date: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByClient(ctx context.Context, clientID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE client_id = $1
ORDER BY created_at
`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list documents by client: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var expiry sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.ClientID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&doc.DocumentType, &status, &doc.FailureReason, &expiry, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatus(status)
	if expiry.Valid {
		t := expiry.Time
		doc.ExpiryDate = &t
	}
	return &doc, nil
}
