package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

const requiredCategories = 3

// ClientViewUseCase recomputes the consolidated per-client view from scratch
// on every run and replaces it in one atomic write, so a partially failed run
// never leaves a half-updated view behind.
type ClientViewUseCase struct {
	docs    ports.DocumentRepository
	records ports.SpecializedRecordRepository
	clients ports.ClientRepository
	views   ports.ClientViewRepository
	log     *slog.Logger
}

func NewClientViewUseCase(
	docs ports.DocumentRepository,
	records ports.SpecializedRecordRepository,
	clients ports.ClientRepository,
	views ports.ClientViewRepository,
	log *slog.Logger,
) *ClientViewUseCase {
	return &ClientViewUseCase{docs: docs, records: records, clients: clients, views: views, log: log}
}

func (uc *ClientViewUseCase) Recompute(ctx context.Context, clientID string) (*domain.ClientView, error) {
	docs, err := uc.docs.ListByClient(ctx, clientID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list client documents", err)
	}

	view := &domain.ClientView{
		ClientID:       clientID,
		TotalDocuments: len(docs),
		RecomputedAt:   time.Now().UTC(),
	}
	for _, doc := range docs {
		switch doc.Status {
		case domain.StatusProcessed:
			view.ProcessedCount++
		case domain.StatusFailed:
			view.FailedCount++
		}
	}

	if view.HasIdentity, err = uc.records.HasIdentity(ctx, clientID); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "check identity records", err)
	}
	if view.HasContract, err = uc.records.HasContract(ctx, clientID); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "check contract records", err)
	}
	if view.HasFinancial, err = uc.records.HasFinancial(ctx, clientID); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "check financial records", err)
	}

	present := 0
	for _, has := range []bool{view.HasIdentity, view.HasContract, view.HasFinancial} {
		if has {
			present++
		}
	}
	view.CompletenessScore = float64(present) / requiredCategories * 100

	if err := uc.views.Replace(ctx, view); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "replace client view", err)
	}
	return view, nil
}

func (uc *ClientViewUseCase) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := uc.clients.ListActiveIDs(ctx)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "list active clients", err)
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if _, err := uc.Recompute(ctx, id); err != nil {
			// One client's failure must not block the rest of the run.
			uc.log.Error("client view recompute failed", "client_id", id, "error", err)
			continue
		}
		updated++
	}

	uc.log.Info("client view aggregation finished", "clients", len(ids), "updated", updated)
	return updated, nil
}
