package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

// SpecializedExtractor is the shared consumer for the identity, contract and
// financial queues. Each variant supplies a persist function that parses the
// stored extracted fields and upserts its record; the runner owns the status
// transitions, failure routing and view refresh. Parsing never re-invokes the
// analysis service.
type SpecializedExtractor struct {
	name    string
	docs    ports.DocumentRepository
	fields  ports.ExtractedFieldsRepository
	reviews ports.ReviewRepository
	views   ports.ViewAggregator
	persist func(ctx context.Context, doc *domain.Document, fields *domain.ExtractedFields) error
	log     *slog.Logger
}

func (ex *SpecializedExtractor) Handle(ctx context.Context, msg domain.PipelineMessage) error {
	doc, err := ex.docs.GetByID(ctx, msg.DocumentID)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "fetch document", err)
	}
	if doc.Status.AtOrPast(domain.StatusProcessed) {
		ex.log.Info("document already processed, ignoring redelivery", "document_id", doc.ID, "extractor", ex.name)
		return domain.WrapError(domain.ErrDuplicateEvent, ex.name+" extract", fmt.Errorf("document already %s", doc.Status))
	}
	if doc.Status == domain.StatusFailed {
		ex.log.Info("message for failed document ignored", "document_id", doc.ID, "extractor", ex.name)
		return domain.WrapError(domain.ErrDuplicateEvent, ex.name+" extract", fmt.Errorf("document is failed"))
	}

	fields, err := ex.fields.GetByDocumentID(ctx, msg.FieldsRef)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "load extracted fields", err)
	}

	if err := ex.persist(ctx, doc, fields); err != nil {
		if domain.IsKind(err, domain.ErrParsing) {
			return ex.failDocument(ctx, doc, err)
		}
		return err
	}

	if err := ex.docs.Transition(ctx, doc.ID, domain.StatusClassified, domain.StatusProcessed); err != nil {
		if !domain.IsKind(err, domain.ErrStatusConflict) {
			return domain.WrapError(domain.ErrTemporary, "transition to processed", err)
		}
		ex.log.Info("lost processed transition race", "document_id", doc.ID, "extractor", ex.name)
	}

	// View refresh is best effort; the scheduled aggregation run repairs any miss.
	if _, err := ex.views.Recompute(ctx, doc.ClientID); err != nil {
		ex.log.Warn("client view refresh failed", "client_id", doc.ClientID, "error", err)
	}

	ex.log.Info("specialized extraction complete", "document_id", doc.ID, "extractor", ex.name)
	return nil
}

// failDocument marks exactly this document failed and surfaces it for manual
// review. The returned ErrParsing makes the bus park the message in the
// dead-letter queue without disturbing other documents on the same consumer.
func (ex *SpecializedExtractor) failDocument(ctx context.Context, doc *domain.Document, parseErr error) error {
	reason := fmt.Sprintf("%s_parsing_error", ex.name)
	if err := ex.docs.MarkFailed(ctx, doc.ID, parseErr.Error()); err != nil {
		return domain.WrapError(domain.ErrTemporary, "mark document failed", err)
	}
	if err := ex.reviews.Create(ctx, &domain.ReviewItem{
		DocumentID: doc.ID,
		ReasonCode: reason,
		Status:     domain.ReviewPending,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		ex.log.Error("enqueue review item failed", "document_id", doc.ID, "error", err)
	}
	ex.log.Warn("parsing failed, document routed to review", "document_id", doc.ID, "extractor", ex.name, "error", parseErr)
	return parseErr
}

func NewIdentityExtractor(
	docs ports.DocumentRepository,
	fields ports.ExtractedFieldsRepository,
	records ports.SpecializedRecordRepository,
	reviews ports.ReviewRepository,
	views ports.ViewAggregator,
	log *slog.Logger,
) *SpecializedExtractor {
	ex := &SpecializedExtractor{name: "identity", docs: docs, fields: fields, reviews: reviews, views: views, log: log}
	ex.persist = func(ctx context.Context, doc *domain.Document, f *domain.ExtractedFields) error {
		rec, err := parseIdentity(f)
		if err != nil {
			return err
		}
		if err := records.UpsertIdentity(ctx, rec); err != nil {
			return domain.WrapError(domain.ErrTemporary, "upsert identity record", err)
		}
		if rec.ExpiryDate != nil {
			if err := docs.SetExpiryDate(ctx, doc.ID, *rec.ExpiryDate); err != nil {
				return domain.WrapError(domain.ErrTemporary, "set expiry date", err)
			}
		}
		return nil
	}
	return ex
}

func NewContractExtractor(
	docs ports.DocumentRepository,
	fields ports.ExtractedFieldsRepository,
	records ports.SpecializedRecordRepository,
	reviews ports.ReviewRepository,
	views ports.ViewAggregator,
	log *slog.Logger,
) *SpecializedExtractor {
	ex := &SpecializedExtractor{name: "contract", docs: docs, fields: fields, reviews: reviews, views: views, log: log}
	ex.persist = func(ctx context.Context, _ *domain.Document, f *domain.ExtractedFields) error {
		rec, err := parseContract(f)
		if err != nil {
			return err
		}
		if err := records.UpsertContract(ctx, rec); err != nil {
			return domain.WrapError(domain.ErrTemporary, "upsert contract record", err)
		}
		return nil
	}
	return ex
}

// NewGenericExtractor handles the default queue: unrecognized document types
// carry no specialized record, they just complete the lifecycle.
func NewGenericExtractor(
	docs ports.DocumentRepository,
	fields ports.ExtractedFieldsRepository,
	reviews ports.ReviewRepository,
	views ports.ViewAggregator,
	log *slog.Logger,
) *SpecializedExtractor {
	ex := &SpecializedExtractor{name: "generic", docs: docs, fields: fields, reviews: reviews, views: views, log: log}
	ex.persist = func(context.Context, *domain.Document, *domain.ExtractedFields) error {
		return nil
	}
	return ex
}

func NewFinancialExtractor(
	docs ports.DocumentRepository,
	fields ports.ExtractedFieldsRepository,
	records ports.SpecializedRecordRepository,
	reviews ports.ReviewRepository,
	views ports.ViewAggregator,
	log *slog.Logger,
) *SpecializedExtractor {
	ex := &SpecializedExtractor{name: "financial", docs: docs, fields: fields, reviews: reviews, views: views, log: log}
	ex.persist = func(ctx context.Context, _ *domain.Document, f *domain.ExtractedFields) error {
		rec, err := parseFinancial(f)
		if err != nil {
			return err
		}
		if err := records.UpsertFinancial(ctx, rec); err != nil {
			return domain.WrapError(domain.ErrTemporary, "upsert financial record", err)
		}
		return nil
	}
	return ex
}
