package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

// ExtractionResultUseCase handles completion notifications from the analysis
// service. Notifications carry the correlation id only; the job table resolves
// it back to a document. Delivery is at-least-once, so every step is gated on
// document status and every write is an idempotent upsert.
type ExtractionResultUseCase struct {
	docs       ports.DocumentRepository
	jobs       ports.AnalysisJobRepository
	fields     ports.ExtractedFieldsRepository
	reviews    ports.ReviewRepository
	analysis   ports.AnalysisService
	bus        ports.MessageBus
	routeQueue string
	log        *slog.Logger
}

func NewExtractionResultUseCase(
	docs ports.DocumentRepository,
	jobs ports.AnalysisJobRepository,
	fields ports.ExtractedFieldsRepository,
	reviews ports.ReviewRepository,
	analysis ports.AnalysisService,
	bus ports.MessageBus,
	routeQueue string,
	log *slog.Logger,
) *ExtractionResultUseCase {
	return &ExtractionResultUseCase{
		docs:       docs,
		jobs:       jobs,
		fields:     fields,
		reviews:    reviews,
		analysis:   analysis,
		bus:        bus,
		routeQueue: routeQueue,
		log:        log,
	}
}

func (uc *ExtractionResultUseCase) HandleNotification(ctx context.Context, note domain.JobNotification) error {
	job, err := uc.jobs.GetByJobID(ctx, note.JobID)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnknownJob) {
			// Cannot be re-correlated; log and drop instead of retrying forever.
			uc.log.Warn("notification for unknown job discarded", "job_id", note.JobID)
			return err
		}
		return domain.WrapError(domain.ErrTemporary, "resolve analysis job", err)
	}

	doc, err := uc.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "fetch document", err)
	}

	// Duplicate notification, or a document an operator already failed:
	// the status gate stops any further progression.
	if doc.Status.AtOrPast(domain.StatusExtracted) {
		uc.log.Info("duplicate completion notification ignored", "document_id", doc.ID, "job_id", note.JobID)
		return domain.WrapError(domain.ErrDuplicateEvent, "handle notification", fmt.Errorf("document already %s", doc.Status))
	}
	if doc.Status == domain.StatusFailed {
		uc.log.Info("stale notification for failed document ignored", "document_id", doc.ID, "job_id", note.JobID)
		return domain.WrapError(domain.ErrDuplicateEvent, "handle notification", fmt.Errorf("document is failed"))
	}

	if note.Status == domain.NotificationFailed {
		return uc.handleJobFailure(ctx, doc, job, note.Reason)
	}

	results, err := uc.analysis.FetchResults(ctx, job.JobID)
	if err != nil {
		// Document stays analysis_started; the bus redelivers up to its budget
		// and then parks the notification in the dead-letter queue.
		return domain.WrapError(domain.ErrTemporary, "fetch analysis results", err)
	}

	now := time.Now().UTC()
	if err := uc.fields.Upsert(ctx, &domain.ExtractedFields{
		DocumentID:   doc.ID,
		FullText:     results.FullText,
		Forms:        results.Forms,
		QueryAnswers: results.QueryAnswers,
		BlockCount:   results.BlockCount,
		PageCount:    results.PageCount,
		Confidence:   results.Confidence,
		ExtractedAt:  now,
	}); err != nil {
		return domain.WrapError(domain.ErrTemporary, "persist extracted fields", err)
	}

	if err := uc.docs.Transition(ctx, doc.ID, domain.StatusAnalysisStarted, domain.StatusExtracted); err != nil {
		if domain.IsKind(err, domain.ErrStatusConflict) {
			// A concurrent handler for the same notification won the CAS.
			uc.log.Info("lost extraction transition race, treating as duplicate", "document_id", doc.ID)
			return domain.WrapError(domain.ErrDuplicateEvent, "transition to extracted", err)
		}
		return domain.WrapError(domain.ErrTemporary, "transition to extracted", err)
	}

	if err := uc.jobs.SetStatus(ctx, job.JobID, domain.JobCompleted); err != nil {
		uc.log.Error("mark job completed failed", "job_id", job.JobID, "error", err)
	}

	msg := domain.PipelineMessage{DocumentID: doc.ID, ClientID: doc.ClientID, FieldsRef: doc.ID}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal routing message: %w", err)
	}
	// Deduplicated by message id: even a redelivered notification that raced
	// past the gates emits at most one routing message.
	if err := uc.bus.Publish(ctx, uc.routeQueue, "route-"+doc.ID, payload); err != nil {
		return domain.WrapError(domain.ErrTemporary, "publish routing message", err)
	}

	uc.log.Info("extraction persisted and routed",
		"document_id", doc.ID,
		"job_id", job.JobID,
		"pages", results.PageCount,
	)
	return nil
}

func (uc *ExtractionResultUseCase) handleJobFailure(ctx context.Context, doc *domain.Document, job *domain.AnalysisJob, reason string) error {
	if reason == "" {
		reason = "analysis job failed"
	}
	if err := uc.jobs.SetStatus(ctx, job.JobID, domain.JobFailed); err != nil {
		return domain.WrapError(domain.ErrTemporary, "mark job failed", err)
	}
	if err := uc.docs.MarkFailed(ctx, doc.ID, reason); err != nil {
		return domain.WrapError(domain.ErrTemporary, "mark document failed", err)
	}
	if err := uc.reviews.Create(ctx, &domain.ReviewItem{
		DocumentID: doc.ID,
		ReasonCode: "analysis_failed",
		Status:     domain.ReviewPending,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		uc.log.Error("enqueue review item failed", "document_id", doc.ID, "error", err)
	}
	uc.log.Warn("analysis job failed", "document_id", doc.ID, "job_id", job.JobID, "reason", reason)
	return nil
}
