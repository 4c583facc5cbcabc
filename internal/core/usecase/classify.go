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

// QueueRouting maps a classification category to its destination queue. One
// decision produces exactly one named destination, never a broadcast.
type QueueRouting struct {
	Identity  string
	Contract  string
	Financial string
	Default   string
}

func (r QueueRouting) QueueFor(category domain.Category) string {
	switch category {
	case domain.CategoryIdentity:
		return r.Identity
	case domain.CategoryContract:
		return r.Contract
	case domain.CategoryFinancial:
		return r.Financial
	default:
		return r.Default
	}
}

// ClassifyUseCase consumes routing messages, derives a document type from the
// stored extracted fields and dispatches to the assigned queue. The classifier
// is deterministic, so a redelivery after a persist-then-dispatch failure
// re-derives the identical result and routes to the same queue.
type ClassifyUseCase struct {
	docs       ports.DocumentRepository
	fields     ports.ExtractedFieldsRepository
	results    ports.ClassificationRepository
	classifier ports.Classifier
	bus        ports.MessageBus
	routing    QueueRouting
	log        *slog.Logger
}

func NewClassifyUseCase(
	docs ports.DocumentRepository,
	fields ports.ExtractedFieldsRepository,
	results ports.ClassificationRepository,
	classifier ports.Classifier,
	bus ports.MessageBus,
	routing QueueRouting,
	log *slog.Logger,
) *ClassifyUseCase {
	return &ClassifyUseCase{
		docs:       docs,
		fields:     fields,
		results:    results,
		classifier: classifier,
		bus:        bus,
		routing:    routing,
		log:        log,
	}
}

func (uc *ClassifyUseCase) HandleRouting(ctx context.Context, msg domain.PipelineMessage) error {
	doc, err := uc.docs.GetByID(ctx, msg.DocumentID)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "fetch document", err)
	}
	if doc.Status == domain.StatusFailed || doc.Status.AtOrPast(domain.StatusProcessed) {
		uc.log.Info("routing message for finished document ignored", "document_id", doc.ID, "status", string(doc.Status))
		return domain.WrapError(domain.ErrDuplicateEvent, "classify", fmt.Errorf("document is %s", doc.Status))
	}

	fields, err := uc.fields.GetByDocumentID(ctx, msg.FieldsRef)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "load extracted fields", err)
	}

	cls := uc.classifier.Classify(fields)
	queue := uc.routing.QueueFor(cls.Category)

	if err := uc.results.Upsert(ctx, &domain.ClassificationResult{
		DocumentID:   doc.ID,
		DocumentType: cls.DocumentType,
		Category:     cls.Category,
		Score:        cls.Score,
		RuleTrace:    cls.RuleTrace,
		RoutedQueue:  queue,
		ClassifiedAt: time.Now().UTC(),
	}); err != nil {
		return domain.WrapError(domain.ErrTemporary, "persist classification", err)
	}
	if err := uc.docs.SetDocumentType(ctx, doc.ID, cls.DocumentType); err != nil {
		return domain.WrapError(domain.ErrTemporary, "set document type", err)
	}

	if err := uc.docs.Transition(ctx, doc.ID, domain.StatusExtracted, domain.StatusClassified); err != nil {
		if !domain.IsKind(err, domain.ErrStatusConflict) {
			return domain.WrapError(domain.ErrTemporary, "transition to classified", err)
		}
		// Already classified: a previous delivery persisted the result but the
		// dispatch may have failed, so fall through and dispatch again. The
		// specialized upsert downstream is idempotent on document id.
		uc.log.Info("document already classified, re-dispatching", "document_id", doc.ID)
	}

	payload, err := json.Marshal(domain.PipelineMessage{
		DocumentID: doc.ID,
		ClientID:   doc.ClientID,
		FieldsRef:  msg.FieldsRef,
	})
	if err != nil {
		return fmt.Errorf("marshal dispatch message: %w", err)
	}
	if err := uc.bus.Publish(ctx, queue, "dispatch-"+doc.ID, payload); err != nil {
		return domain.WrapError(domain.ErrTemporary, "dispatch to "+queue, err)
	}

	uc.log.Info("document classified",
		"document_id", doc.ID,
		"document_type", cls.DocumentType,
		"category", string(cls.Category),
		"queue", queue,
		"score", cls.Score,
	)
	return nil
}
