package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

// IntakeEvent is the storage-event form of a new-document registration.
type IntakeEvent struct {
	DocumentID  string
	ClientID    string
	Filename    string
	MimeType    string
	StoragePath string
}

// DocumentIntake is the inbound contract for the intake coordinator.
type DocumentIntake interface {
	Upload(ctx context.Context, clientID, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Register(ctx context.Context, event IntakeEvent) (*domain.Document, error)
	Reprocess(ctx context.Context, documentID string) error
}

// CompletionHandler consumes analysis-service completion notifications.
type CompletionHandler interface {
	HandleNotification(ctx context.Context, note domain.JobNotification) error
}

// RoutingHandler consumes routing messages and dispatches to one specialized
// queue.
type RoutingHandler interface {
	HandleRouting(ctx context.Context, msg domain.PipelineMessage) error
}

// SpecializedHandler consumes one specialized queue.
type SpecializedHandler interface {
	Handle(ctx context.Context, msg domain.PipelineMessage) error
}

// ExpiryMonitor runs windowed sweeps and the synchronous operator operations.
type ExpiryMonitor interface {
	Sweep(ctx context.Context, now time.Time) (*domain.SweepSummary, error)
	Stats(ctx context.Context, now time.Time) (*domain.ExpiryStats, error)
	Expiring(ctx context.Context, now time.Time) ([]domain.ExpiringDocument, error)
	SendInformationRequest(ctx context.Context, clientID, details string) (bool, error)
}

// ViewAggregator recomputes consolidated client views.
type ViewAggregator interface {
	Recompute(ctx context.Context, clientID string) (*domain.ClientView, error)
	RecomputeAll(ctx context.Context) (int, error)
}

// ReviewService is the manual-review workflow surface.
type ReviewService interface {
	Pending(ctx context.Context) ([]domain.ReviewItem, error)
	Get(ctx context.Context, documentID string) (*domain.ReviewItem, error)
	Submit(ctx context.Context, documentID string, decision domain.ReviewDecision, note string) error
	Stats(ctx context.Context) (*domain.ReviewStats, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}
