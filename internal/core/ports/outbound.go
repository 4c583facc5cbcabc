package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

// DocumentRepository persists document state. Transition is compare-and-set:
// it succeeds only when the current status matches the expected one, which is
// what keeps two concurrent handlers from double-processing a document.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Transition(ctx context.Context, id string, from, to domain.DocumentStatus) error
	MarkFailed(ctx context.Context, id, reason string) error
	SetDocumentType(ctx context.Context, id, documentType string) error
	SetExpiryDate(ctx context.Context, id string, expiry time.Time) error
	ListByClient(ctx context.Context, clientID string) ([]domain.Document, error)
}

// AnalysisJobRepository owns the job-id to document-id correlation.
type AnalysisJobRepository interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
	GetByJobID(ctx context.Context, jobID string) (*domain.AnalysisJob, error)
	SetStatus(ctx context.Context, jobID string, status domain.AnalysisJobStatus) error
}

// ExtractedFieldsRepository stores raw analysis output, write-once per
// document via idempotent upsert.
type ExtractedFieldsRepository interface {
	Upsert(ctx context.Context, fields *domain.ExtractedFields) error
	GetByDocumentID(ctx context.Context, documentID string) (*domain.ExtractedFields, error)
}

// ClassificationRepository stores one classification result per document.
type ClassificationRepository interface {
	Upsert(ctx context.Context, result *domain.ClassificationResult) error
	GetByDocumentID(ctx context.Context, documentID string) (*domain.ClassificationResult, error)
}

// SpecializedRecordRepository stores type-specific records, each upsert
// idempotent on document id.
type SpecializedRecordRepository interface {
	UpsertIdentity(ctx context.Context, rec *domain.IdentityRecord) error
	UpsertContract(ctx context.Context, rec *domain.ContractRecord) error
	UpsertFinancial(ctx context.Context, rec *domain.FinancialRecord) error
	HasIdentity(ctx context.Context, clientID string) (bool, error)
	HasContract(ctx context.Context, clientID string) (bool, error)
	HasFinancial(ctx context.Context, clientID string) (bool, error)
}

// ExpiryAlertRepository guards the once-per-window notification invariant.
type ExpiryAlertRepository interface {
	// ListDue returns documents expiring inside [from, to] that have no alert
	// recorded for the given window day.
	ListDue(ctx context.Context, from, to time.Time, windowDay string) ([]domain.ExpiringDocument, error)
	ListExpiring(ctx context.Context, from, to time.Time) ([]domain.ExpiringDocument, error)
	// RecordAlert inserts the alert row; it reports false when an alert for the
	// same document and window already exists.
	RecordAlert(ctx context.Context, alert *domain.ExpiryAlert) (bool, error)
}

// ClientRepository reads the collaborator-owned client records.
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// ClientViewRepository replaces the consolidated view atomically.
type ClientViewRepository interface {
	Replace(ctx context.Context, view *domain.ClientView) error
	GetByClientID(ctx context.Context, clientID string) (*domain.ClientView, error)
}

// ReviewRepository backs the manual-review workflow.
type ReviewRepository interface {
	Create(ctx context.Context, item *domain.ReviewItem) error
	GetByDocumentID(ctx context.Context, documentID string) (*domain.ReviewItem, error)
	ListPending(ctx context.Context) ([]domain.ReviewItem, error)
	Resolve(ctx context.Context, documentID string, decision domain.ReviewDecision, note string) error
	Stats(ctx context.Context) (*domain.ReviewStats, error)
}

// ObjectStorage stores source documents by key.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AnalysisService wraps the external document-analysis collaborator. StartJob
// returns immediately with a correlation id; completion arrives later on the
// notification subject.
type AnalysisService interface {
	StartJob(ctx context.Context, documentRef string) (string, error)
	FetchResults(ctx context.Context, jobID string) (*domain.AnalysisResults, error)
}

// MessageHandler processes one raw queue message. Returned error kinds drive
// the redelivery decision: ErrTemporary redelivers, ErrParsing dead-letters,
// ErrUnknownJob/ErrDuplicateEvent ack and drop.
type MessageHandler func(ctx context.Context, data []byte) error

// MessageBus publishes to and consumes from named queues with at-least-once
// delivery, a visibility-timeout lease and a bounded redelivery budget.
type MessageBus interface {
	Publish(ctx context.Context, queue, msgID string, data []byte) error
	Consume(ctx context.Context, queue string, handler MessageHandler) error
}

// Mailer delivers notifications through the email collaborator.
type Mailer interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}

// DocumentValidator rejects malformed or unsupported uploads before any side
// effect happens.
type DocumentValidator interface {
	Validate(filename, mimeType string, data []byte) error
}

// Classifier derives a document type from stored extracted fields. It must be
// deterministic: identical fields yield identical classifications.
type Classifier interface {
	Classify(fields *domain.ExtractedFields) domain.Classification
}
