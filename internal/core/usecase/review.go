package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

// ReviewUseCase backs the manual-review console for failed documents.
type ReviewUseCase struct {
	reviews ports.ReviewRepository
	intake  ports.DocumentIntake
	log     *slog.Logger
}

func NewReviewUseCase(reviews ports.ReviewRepository, intake ports.DocumentIntake, log *slog.Logger) *ReviewUseCase {
	return &ReviewUseCase{reviews: reviews, intake: intake, log: log}
}

func (uc *ReviewUseCase) Pending(ctx context.Context) ([]domain.ReviewItem, error) {
	return uc.reviews.ListPending(ctx)
}

func (uc *ReviewUseCase) Get(ctx context.Context, documentID string) (*domain.ReviewItem, error) {
	return uc.reviews.GetByDocumentID(ctx, documentID)
}

// Submit resolves a pending review. An approval re-arms the document through
// the intake coordinator's reprocess path; a rejection leaves it failed.
func (uc *ReviewUseCase) Submit(ctx context.Context, documentID string, decision domain.ReviewDecision, note string) error {
	if decision != domain.ReviewApproved && decision != domain.ReviewRejected {
		return domain.WrapError(domain.ErrValidation, "submit review", fmt.Errorf("unknown decision %q", decision))
	}

	item, err := uc.reviews.GetByDocumentID(ctx, documentID)
	if err != nil {
		return err
	}
	if item.Status == domain.ReviewResolved {
		return domain.WrapError(domain.ErrDuplicateEvent, "submit review", fmt.Errorf("review for %s already resolved", documentID))
	}

	if err := uc.reviews.Resolve(ctx, documentID, decision, note); err != nil {
		return err
	}

	if decision == domain.ReviewApproved {
		if err := uc.intake.Reprocess(ctx, documentID); err != nil {
			return fmt.Errorf("reprocess after approval: %w", err)
		}
	}

	uc.log.Info("review resolved", "document_id", documentID, "decision", string(decision))
	return nil
}

func (uc *ReviewUseCase) Stats(ctx context.Context) (*domain.ReviewStats, error) {
	return uc.reviews.Stats(ctx)
}
