package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create registers a pending review item. A document already under review
// keeps its original item; repeated failures do not reopen resolved ones
// either, reprocessing creates fresh state through the intake path instead.
func (r *ReviewRepository) Create(ctx context.Context, item *domain.ReviewItem) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO review_items (document_id, reason_code, status, decision, note, created_at, resolved_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (document_id) DO NOTHING
`,
		item.DocumentID, item.ReasonCode, string(item.Status),
		string(item.Decision), item.Note, item.CreatedAt, item.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review item: %w", err)
	}
	return nil
}

func (r *ReviewRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.ReviewItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, reason_code, status, decision, note, created_at, resolved_at
FROM review_items
WHERE document_id = $1
`, documentID)

	item, err := scanReviewItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get review item", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("scan review item: %w", err)
	}
	return item, nil
}

func (r *ReviewRepository) ListPending(ctx context.Context) ([]domain.ReviewItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_id, reason_code, status, decision, note, created_at, resolved_at
FROM review_items
WHERE status = $1
ORDER BY created_at
`, string(domain.ReviewPending))
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	var items []domain.ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return items, nil
}

func (r *ReviewRepository) Resolve(ctx context.Context, documentID string, decision domain.ReviewDecision, note string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE review_items
SET status = $2, decision = $3, note = $4, resolved_at = $5
WHERE document_id = $1 AND status = $6
`,
		documentID, string(domain.ReviewResolved), string(decision), note,
		time.Now().UTC(), string(domain.ReviewPending),
	)
	if err != nil {
		return fmt.Errorf("resolve review item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDuplicateEvent, "resolve review item",
			fmt.Errorf("document %s has no pending review", documentID))
	}
	return nil
}

func (r *ReviewRepository) Stats(ctx context.Context) (*domain.ReviewStats, error) {
	stats := &domain.ReviewStats{
		ByReason:   make(map[string]int),
		ComputedAt: time.Now().UTC(),
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT status, reason_code, COUNT(*)
FROM review_items
GROUP BY status, reason_code
`)
	if err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, reason string
		var count int
		if err := rows.Scan(&status, &reason, &count); err != nil {
			return nil, fmt.Errorf("scan review stats: %w", err)
		}
		switch domain.ReviewStatus(status) {
		case domain.ReviewPending:
			stats.Pending += count
		case domain.ReviewResolved:
			stats.Resolved += count
		}
		stats.ByReason[reason] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review stats: %w", err)
	}
	return stats, nil
}

func scanReviewItem(row rowScanner) (*domain.ReviewItem, error) {
	var item domain.ReviewItem
	var status, decision string
	var resolvedAt sql.NullTime

	err := row.Scan(
		&item.DocumentID, &item.ReasonCode, &status, &decision,
		&item.Note, &item.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Status = domain.ReviewStatus(status)
	item.Decision = domain.ReviewDecision(decision)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		item.ResolvedAt = &t
	}
	return &item, nil
}
