package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

// IntakeUseCase validates and registers uploaded documents and starts the
// analysis job. It is the only component allowed to create the job-id to
// document-id correlation, and the document status gate guarantees the
// external analysis call happens at most once per lifecycle.
type IntakeUseCase struct {
	docs      ports.DocumentRepository
	jobs      ports.AnalysisJobRepository
	storage   ports.ObjectStorage
	analysis  ports.AnalysisService
	validator ports.DocumentValidator
	maxBytes  int64
	log       *slog.Logger
}

func NewIntakeUseCase(
	docs ports.DocumentRepository,
	jobs ports.AnalysisJobRepository,
	storage ports.ObjectStorage,
	analysis ports.AnalysisService,
	validator ports.DocumentValidator,
	maxBytes int64,
	log *slog.Logger,
) *IntakeUseCase {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &IntakeUseCase{
		docs:      docs,
		jobs:      jobs,
		storage:   storage,
		analysis:  analysis,
		validator: validator,
		maxBytes:  maxBytes,
		log:       log,
	}
}

func (uc *IntakeUseCase) Upload(ctx context.Context, clientID, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "intake upload", fmt.Errorf("client id is required"))
	}

	data, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrValidation, "intake upload", fmt.Errorf("document exceeds %d bytes", uc.maxBytes))
	}

	// Validation happens before any side effect.
	if err := uc.validator.Validate(filename, mimeType, data); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", clientID, id, sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	return uc.Register(ctx, ports.IntakeEvent{
		DocumentID:  id,
		ClientID:    clientID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
	})
}

func (uc *IntakeUseCase) Register(ctx context.Context, event ports.IntakeEvent) (*domain.Document, error) {
	if event.DocumentID == "" {
		event.DocumentID = uuid.NewString()
	}
	if event.ClientID == "" || event.StoragePath == "" {
		return nil, domain.WrapError(domain.ErrValidation, "intake register", fmt.Errorf("client id and storage path are required"))
	}

	existing, err := uc.docs.GetByID(ctx, event.DocumentID)
	switch {
	case err == nil:
		// Duplicate storage-event delivery: anything at or past
		// analysis_started already owns a job, so this is a no-op.
		if existing.Status.AtOrPast(domain.StatusAnalysisStarted) || existing.Status == domain.StatusFailed {
			uc.log.Info("duplicate intake event ignored",
				"document_id", event.DocumentID,
				"status", string(existing.Status),
			)
			return existing, nil
		}
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		now := time.Now().UTC()
		doc := &domain.Document{
			ID:          event.DocumentID,
			ClientID:    event.ClientID,
			Filename:    event.Filename,
			MimeType:    event.MimeType,
			StoragePath: event.StoragePath,
			Status:      domain.StatusUploaded,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := uc.docs.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
		existing = doc
	default:
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	if err := uc.startAnalysis(ctx, existing); err != nil {
		return nil, err
	}
	return uc.docs.GetByID(ctx, existing.ID)
}

// startAnalysis advances uploaded -> analysis_started, calls the external
// service and persists the job. A failed start rolls the status back to
// uploaded, the only state from which a retry may re-trigger analysis.
func (uc *IntakeUseCase) startAnalysis(ctx context.Context, doc *domain.Document) error {
	if err := uc.docs.Transition(ctx, doc.ID, domain.StatusUploaded, domain.StatusAnalysisStarted); err != nil {
		if domain.IsKind(err, domain.ErrStatusConflict) {
			uc.log.Info("analysis already started, skipping", "document_id", doc.ID)
			return nil
		}
		return fmt.Errorf("advance to analysis_started: %w", err)
	}

	jobID, err := uc.analysis.StartJob(ctx, doc.StoragePath)
	if err != nil {
		if rbErr := uc.docs.Transition(ctx, doc.ID, domain.StatusAnalysisStarted, domain.StatusUploaded); rbErr != nil {
			uc.log.Error("rollback to uploaded failed", "document_id", doc.ID, "error", rbErr)
		}
		return domain.WrapError(domain.ErrTemporary, "start analysis job", err)
	}

	job := &domain.AnalysisJob{
		JobID:      jobID,
		DocumentID: doc.ID,
		Status:     domain.JobRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("persist analysis job: %w", err)
	}

	uc.log.Info("analysis job started", "document_id", doc.ID, "job_id", jobID)
	return nil
}

// Reprocess is the operator-triggered re-arm: it resets the document to
// uploaded and starts a fresh analysis job. Stale callbacks from the old job
// are rejected downstream by the status gate.
func (uc *IntakeUseCase) Reprocess(ctx context.Context, documentID string) error {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := uc.docs.Transition(ctx, doc.ID, doc.Status, domain.StatusUploaded); err != nil {
		return fmt.Errorf("reset for reprocess: %w", err)
	}
	uc.log.Info("document re-armed for reprocessing", "document_id", doc.ID, "previous_status", string(doc.Status))

	doc.Status = domain.StatusUploaded
	return uc.startAnalysis(ctx, doc)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
