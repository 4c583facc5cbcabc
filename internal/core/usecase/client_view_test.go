package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type failingRecordsRepo struct {
	*recordsRepoFake
	identityErr error
}

func (f *failingRecordsRepo) HasIdentity(ctx context.Context, clientID string) (bool, error) {
	if f.identityErr != nil {
		return false, f.identityErr
	}
	return f.recordsRepoFake.HasIdentity(ctx, clientID)
}

func TestRecomputeBuildsViewFromScratch(t *testing.T) {
	docs := newDocRepoFake(
		&domain.Document{ID: "d1", ClientID: "c1", Status: domain.StatusProcessed},
		&domain.Document{ID: "d2", ClientID: "c1", Status: domain.StatusProcessed},
		&domain.Document{ID: "d3", ClientID: "c1", Status: domain.StatusFailed},
		&domain.Document{ID: "d4", ClientID: "c1", Status: domain.StatusAnalysisStarted},
		&domain.Document{ID: "d5", ClientID: "other", Status: domain.StatusProcessed},
	)
	records := newRecordsRepoFake()
	records.hasIdentity = true
	records.hasContract = true
	views := &viewRepoFake{}
	uc := NewClientViewUseCase(docs, records, &clientRepoFake{}, views, testLogger())

	view, err := uc.Recompute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if view.TotalDocuments != 4 {
		t.Fatalf("total = %d, want 4", view.TotalDocuments)
	}
	if view.ProcessedCount != 2 || view.FailedCount != 1 {
		t.Fatalf("counts = %d processed / %d failed, want 2/1", view.ProcessedCount, view.FailedCount)
	}
	if !view.HasIdentity || !view.HasContract || view.HasFinancial {
		t.Fatalf("category flags = %v/%v/%v", view.HasIdentity, view.HasContract, view.HasFinancial)
	}
	if math.Abs(view.CompletenessScore-200.0/3) > 1e-9 {
		t.Fatalf("score = %v, want two thirds of 100", view.CompletenessScore)
	}
	if len(views.replaced) != 1 {
		t.Fatalf("view replaced %d times, want 1", len(views.replaced))
	}
}

func TestRecomputeFullCompleteness(t *testing.T) {
	records := newRecordsRepoFake()
	records.hasIdentity = true
	records.hasContract = true
	records.hasFinancial = true
	uc := NewClientViewUseCase(newDocRepoFake(), records, &clientRepoFake{}, &viewRepoFake{}, testLogger())

	view, err := uc.Recompute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if view.CompletenessScore != 100 {
		t.Fatalf("score = %v, want 100", view.CompletenessScore)
	}
}

func TestRecomputeAllContinuesPastFailure(t *testing.T) {
	docs := newDocRepoFake()
	records := &failingRecordsRepo{recordsRepoFake: newRecordsRepoFake()}
	clients := &clientRepoFake{active: []string{"c1", "c2", "c3"}}
	views := &viewRepoFake{}
	uc := NewClientViewUseCase(docs, records, clients, views, testLogger())

	// Every HasIdentity call fails: no client can be recomputed, but the run
	// still visits all of them and reports zero updates without an error.
	records.identityErr = errors.New("replica lagging")
	updated, err := uc.RecomputeAll(context.Background())
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if updated != 0 {
		t.Fatalf("updated = %d, want 0", updated)
	}

	records.identityErr = nil
	updated, err = uc.RecomputeAll(context.Background())
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if updated != 3 {
		t.Fatalf("updated = %d, want 3", updated)
	}
	if len(views.replaced) != 3 {
		t.Fatalf("views replaced = %d, want 3", len(views.replaced))
	}
}

func TestRecomputeAllStopsOnCancelledContext(t *testing.T) {
	clients := &clientRepoFake{active: []string{"c1", "c2"}}
	uc := NewClientViewUseCase(newDocRepoFake(), newRecordsRepoFake(), clients, &viewRepoFake{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := uc.RecomputeAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
