package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type ClientViewRepository struct {
	db *sql.DB
}

func NewClientViewRepository(db *sql.DB) *ClientViewRepository {
	return &ClientViewRepository{db: db}
}

// Replace swaps the whole view in a single upsert, so readers never observe a
// half-updated row.
func (r *ClientViewRepository) Replace(ctx context.Context, view *domain.ClientView) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO client_views (client_id, completeness_score, has_identity, has_contract, has_financial, total_documents, processed_count, failed_count, recomputed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (client_id) DO UPDATE SET
	completeness_score = EXCLUDED.completeness_score,
	has_identity = EXCLUDED.has_identity,
	has_contract = EXCLUDED.has_contract,
	has_financial = EXCLUDED.has_financial,
	total_documents = EXCLUDED.total_documents,
	processed_count = EXCLUDED.processed_count,
	failed_count = EXCLUDED.failed_count,
	recomputed_at = EXCLUDED.recomputed_at
`,
		view.ClientID, view.CompletenessScore, view.HasIdentity, view.HasContract, view.HasFinancial,
		view.TotalDocuments, view.ProcessedCount, view.FailedCount, view.RecomputedAt,
	)
	if err != nil {
		return fmt.Errorf("replace client view: %w", err)
	}
	return nil
}

func (r *ClientViewRepository) GetByClientID(ctx context.Context, clientID string) (*domain.ClientView, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT client_id, completeness_score, has_identity, has_contract, has_financial, total_documents, processed_count, failed_count, recomputed_at
FROM client_views
WHERE client_id = $1
`, clientID)

	var view domain.ClientView
	err := row.Scan(
		&view.ClientID, &view.CompletenessScore, &view.HasIdentity, &view.HasContract, &view.HasFinancial,
		&view.TotalDocuments, &view.ProcessedCount, &view.FailedCount, &view.RecomputedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrClientNotFound, "get client view", fmt.Errorf("client %s", clientID))
		}
		return nil, fmt.Errorf("scan client view: %w", err)
	}
	return &view, nil
}
