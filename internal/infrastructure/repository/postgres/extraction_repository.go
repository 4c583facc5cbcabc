package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type ExtractedFieldsRepository struct {
	db *sql.DB
}

func NewExtractedFieldsRepository(db *sql.DB) *ExtractedFieldsRepository {
	return &ExtractedFieldsRepository{db: db}
}

// Upsert is keyed on document id so a redelivered completion notification
// overwrites the row instead of duplicating it.
func (r *ExtractedFieldsRepository) Upsert(ctx context.Context, fields *domain.ExtractedFields) error {
	formsJSON, err := json.Marshal(orEmptyMap(fields.Forms))
	if err != nil {
		return fmt.Errorf("marshal forms: %w", err)
	}
	answersJSON, err := json.Marshal(orEmptyMap(fields.QueryAnswers))
	if err != nil {
		return fmt.Errorf("marshal query answers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extracted_fields (document_id, full_text, forms, query_answers, block_count, page_count, confidence, extracted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (document_id) DO UPDATE SET
	full_text = EXCLUDED.full_text,
	forms = EXCLUDED.forms,
	query_answers = EXCLUDED.query_answers,
	block_count = EXCLUDED.block_count,
	page_count = EXCLUDED.page_count,
	confidence = EXCLUDED.confidence,
	extracted_at = EXCLUDED.extracted_at
`,
		fields.DocumentID, fields.FullText, formsJSON, answersJSON,
		fields.BlockCount, fields.PageCount, fields.Confidence, fields.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert extracted fields: %w", err)
	}
	return nil
}

func (r *ExtractedFieldsRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.ExtractedFields, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, full_text, forms, query_answers, block_count, page_count, confidence, extracted_at
FROM extracted_fields
WHERE document_id = $1
`, documentID)

	var fields domain.ExtractedFields
	var formsRaw, answersRaw []byte

	err := row.Scan(
		&fields.DocumentID, &fields.FullText, &formsRaw, &answersRaw,
		&fields.BlockCount, &fields.PageCount, &fields.Confidence, &fields.ExtractedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get extracted fields", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan extracted fields: %w", err)
	}

	if err := json.Unmarshal(formsRaw, &fields.Forms); err != nil {
		return nil, fmt.Errorf("unmarshal forms: %w", err)
	}
	if err := json.Unmarshal(answersRaw, &fields.QueryAnswers); err != nil {
		return nil, fmt.Errorf("unmarshal query answers: %w", err)
	}
	return &fields, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
