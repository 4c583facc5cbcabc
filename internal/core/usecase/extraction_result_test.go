package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

const routeQueue = "docs.classification"

func newCompletionFixture(docStatus domain.DocumentStatus) (*ExtractionResultUseCase, *docRepoFake, *jobRepoFake, *fieldsRepoFake, *reviewRepoFake, *analysisFake, *busFake) {
	docs := newDocRepoFake(&domain.Document{
		ID:       "doc-1",
		ClientID: "client-1",
		Status:   docStatus,
	})
	jobs := newJobRepoFake(&domain.AnalysisJob{
		JobID:      "job-1",
		DocumentID: "doc-1",
		Status:     domain.JobRunning,
	})
	fields := newFieldsRepoFake()
	reviews := newReviewRepoFake()
	analysis := &analysisFake{results: &domain.AnalysisResults{
		FullText:   "DNI 12345678Z",
		Forms:      map[string]string{"numero_documento": "12345678Z"},
		PageCount:  2,
		Confidence: 0.93,
	}}
	bus := &busFake{}
	uc := NewExtractionResultUseCase(docs, jobs, fields, reviews, analysis, bus, routeQueue, testLogger())
	return uc, docs, jobs, fields, reviews, analysis, bus
}

func TestHandleNotificationCompletesExtraction(t *testing.T) {
	uc, docs, jobs, fields, _, _, bus := newCompletionFixture(domain.StatusAnalysisStarted)

	err := uc.HandleNotification(context.Background(), domain.JobNotification{JobID: "job-1", Status: domain.NotificationCompleted})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	stored, err := fields.GetByDocumentID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("fields not persisted: %v", err)
	}
	if stored.PageCount != 2 || stored.Forms["numero_documento"] != "12345678Z" {
		t.Fatalf("unexpected stored fields: %+v", stored)
	}

	if got := docs.status("doc-1"); got != domain.StatusExtracted {
		t.Fatalf("status = %s, want extracted", got)
	}
	if jobs.statuses["job-1"] != domain.JobCompleted {
		t.Fatalf("job status = %s, want completed", jobs.statuses["job-1"])
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(bus.published))
	}
	pub := bus.published[0]
	if pub.Queue != routeQueue || pub.MsgID != "route-doc-1" {
		t.Fatalf("published to %s with id %s", pub.Queue, pub.MsgID)
	}
	var msg domain.PipelineMessage
	if err := json.Unmarshal(pub.Data, &msg); err != nil {
		t.Fatalf("decode routing message: %v", err)
	}
	if msg.DocumentID != "doc-1" || msg.FieldsRef != "doc-1" {
		t.Fatalf("unexpected routing message: %+v", msg)
	}
}

func TestHandleNotificationUnknownJob(t *testing.T) {
	uc, _, _, _, _, _, bus := newCompletionFixture(domain.StatusAnalysisStarted)

	err := uc.HandleNotification(context.Background(), domain.JobNotification{JobID: "no-such-job", Status: domain.NotificationCompleted})
	if !domain.IsKind(err, domain.ErrUnknownJob) {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
	if len(bus.published) != 0 {
		t.Fatal("unknown job must publish nothing")
	}
}

func TestHandleNotificationDuplicateAfterExtraction(t *testing.T) {
	uc, docs, _, _, _, analysis, bus := newCompletionFixture(domain.StatusExtracted)

	err := uc.HandleNotification(context.Background(), domain.JobNotification{JobID: "job-1", Status: domain.NotificationCompleted})
	if !domain.IsKind(err, domain.ErrDuplicateEvent) {
		t.Fatalf("err = %v, want ErrDuplicateEvent", err)
	}
	if got := docs.status("doc-1"); got != domain.StatusExtracted {
		t.Fatalf("status changed to %s on duplicate", got)
	}
	if len(bus.published) != 0 || analysis.startCalls != 0 {
		t.Fatal("duplicate notification must have no side effects")
	}
}

func TestHandleNotificationJobFailure(t *testing.T) {
	uc, docs, jobs, _, reviews, _, bus := newCompletionFixture(domain.StatusAnalysisStarted)

	err := uc.HandleNotification(context.Background(), domain.JobNotification{
		JobID:  "job-1",
		Status: domain.NotificationFailed,
		Reason: "document unreadable",
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	if got := docs.status("doc-1"); got != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if jobs.statuses["job-1"] != domain.JobFailed {
		t.Fatalf("job status = %s, want failed", jobs.statuses["job-1"])
	}
	item, err := reviews.GetByDocumentID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("review item not created: %v", err)
	}
	if item.ReasonCode != "analysis_failed" || item.Status != domain.ReviewPending {
		t.Fatalf("unexpected review item: %+v", item)
	}
	if len(bus.published) != 0 {
		t.Fatal("failed job must not publish a routing message")
	}
}

func TestHandleNotificationFetchFailureIsTemporary(t *testing.T) {
	uc, docs, _, _, _, analysis, bus := newCompletionFixture(domain.StatusAnalysisStarted)
	analysis.fetchErr = errors.New("results endpoint timeout")

	err := uc.HandleNotification(context.Background(), domain.JobNotification{JobID: "job-1", Status: domain.NotificationCompleted})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("err = %v, want ErrTemporary", err)
	}
	if got := docs.status("doc-1"); got != domain.StatusAnalysisStarted {
		t.Fatalf("status = %s, document must stay analysis_started for the retry", got)
	}
	if len(bus.published) != 0 {
		t.Fatal("no routing message may be published before results are persisted")
	}
}

func TestHandleNotificationPublishFailureIsTemporary(t *testing.T) {
	uc, _, _, fields, _, _, bus := newCompletionFixture(domain.StatusAnalysisStarted)
	bus.err = errors.New("broker unavailable")

	err := uc.HandleNotification(context.Background(), domain.JobNotification{JobID: "job-1", Status: domain.NotificationCompleted})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("err = %v, want ErrTemporary", err)
	}
	// Fields stay persisted; the redelivery re-runs idempotently and only the
	// publish is retried to completion.
	if _, err := fields.GetByDocumentID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("fields should remain persisted: %v", err)
	}
}
