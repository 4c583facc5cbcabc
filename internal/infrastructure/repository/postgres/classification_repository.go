package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type ClassificationRepository struct {
	db *sql.DB
}

func NewClassificationRepository(db *sql.DB) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

func (r *ClassificationRepository) Upsert(ctx context.Context, result *domain.ClassificationResult) error {
	trace := result.RuleTrace
	if trace == nil {
		trace = []string{}
	}
	traceJSON, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshal rule trace: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO classifications (document_id, document_type, category, score, rule_trace, routed_queue, classified_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (document_id) DO UPDATE SET
	document_type = EXCLUDED.document_type,
	category = EXCLUDED.category,
	score = EXCLUDED.score,
	rule_trace = EXCLUDED.rule_trace,
	routed_queue = EXCLUDED.routed_queue,
	classified_at = EXCLUDED.classified_at
`,
		result.DocumentID, result.DocumentType, string(result.Category),
		result.Score, traceJSON, result.RoutedQueue, result.ClassifiedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert classification: %w", err)
	}
	return nil
}

func (r *ClassificationRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.ClassificationResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, document_type, category, score, rule_trace, routed_queue, classified_at
FROM classifications
WHERE document_id = $1
`, documentID)

	var result domain.ClassificationResult
	var category string
	var traceRaw []byte

	err := row.Scan(
		&result.DocumentID, &result.DocumentType, &category,
		&result.Score, &traceRaw, &result.RoutedQueue, &result.ClassifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get classification", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan classification: %w", err)
	}

	if err := json.Unmarshal(traceRaw, &result.RuleTrace); err != nil {
		return nil, fmt.Errorf("unmarshal rule trace: %w", err)
	}
	result.Category = domain.Category(category)
	return &result, nil
}
