package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	transitions []string
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: make(map[string]*domain.Document)}
	for _, doc := range docs {
		copyDoc := *doc
		f.docs[doc.ID] = &copyDoc
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) Transition(_ context.Context, id string, from, to domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "transition document", fmt.Errorf("id %s", id))
	}
	if doc.Status != from {
		return domain.WrapError(domain.ErrStatusConflict, "transition document",
			fmt.Errorf("id %s: expected %s, found %s", id, from, doc.Status))
	}
	doc.Status = to
	f.transitions = append(f.transitions, fmt.Sprintf("%s:%s->%s", id, from, to))
	return nil
}

func (f *docRepoFake) MarkFailed(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark failed", fmt.Errorf("id %s", id))
	}
	doc.Status = domain.StatusFailed
	doc.FailureReason = reason
	return nil
}

func (f *docRepoFake) SetDocumentType(_ context.Context, id, documentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[id]; ok {
		doc.DocumentType = documentType
	}
	return nil
}

func (f *docRepoFake) SetExpiryDate(_ context.Context, id string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[id]; ok {
		doc.ExpiryDate = &expiry
	}
	return nil
}

func (f *docRepoFake) ListByClient(_ context.Context, clientID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.ClientID == clientID {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *docRepoFake) status(id string) domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Status
}

type jobRepoFake struct {
	jobs     map[string]*domain.AnalysisJob
	statuses map[string]domain.AnalysisJobStatus
}

func newJobRepoFake(jobs ...*domain.AnalysisJob) *jobRepoFake {
	f := &jobRepoFake{
		jobs:     make(map[string]*domain.AnalysisJob),
		statuses: make(map[string]domain.AnalysisJobStatus),
	}
	for _, job := range jobs {
		copyJob := *job
		f.jobs[job.JobID] = &copyJob
	}
	return f
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.AnalysisJob) error {
	copyJob := *job
	f.jobs[job.JobID] = &copyJob
	return nil
}

func (f *jobRepoFake) GetByJobID(_ context.Context, jobID string) (*domain.AnalysisJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnknownJob, "get analysis job", fmt.Errorf("job %s", jobID))
	}
	copyJob := *job
	return &copyJob, nil
}

func (f *jobRepoFake) SetStatus(_ context.Context, jobID string, status domain.AnalysisJobStatus) error {
	f.statuses[jobID] = status
	return nil
}

type fieldsRepoFake struct {
	fields map[string]*domain.ExtractedFields
}

func newFieldsRepoFake(fields ...*domain.ExtractedFields) *fieldsRepoFake {
	f := &fieldsRepoFake{fields: make(map[string]*domain.ExtractedFields)}
	for _, fl := range fields {
		copyFields := *fl
		f.fields[fl.DocumentID] = &copyFields
	}
	return f
}

func (f *fieldsRepoFake) Upsert(_ context.Context, fields *domain.ExtractedFields) error {
	copyFields := *fields
	f.fields[fields.DocumentID] = &copyFields
	return nil
}

func (f *fieldsRepoFake) GetByDocumentID(_ context.Context, documentID string) (*domain.ExtractedFields, error) {
	fields, ok := f.fields[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get extracted fields", fmt.Errorf("document %s", documentID))
	}
	copyFields := *fields
	return &copyFields, nil
}

type classificationRepoFake struct {
	results map[string]*domain.ClassificationResult
}

func newClassificationRepoFake() *classificationRepoFake {
	return &classificationRepoFake{results: make(map[string]*domain.ClassificationResult)}
}

func (f *classificationRepoFake) Upsert(_ context.Context, result *domain.ClassificationResult) error {
	copyResult := *result
	f.results[result.DocumentID] = &copyResult
	return nil
}

func (f *classificationRepoFake) GetByDocumentID(_ context.Context, documentID string) (*domain.ClassificationResult, error) {
	result, ok := f.results[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get classification", fmt.Errorf("document %s", documentID))
	}
	copyResult := *result
	return &copyResult, nil
}

type recordsRepoFake struct {
	identity  map[string]*domain.IdentityRecord
	contract  map[string]*domain.ContractRecord
	financial map[string]*domain.FinancialRecord

	hasIdentity  bool
	hasContract  bool
	hasFinancial bool
}

func newRecordsRepoFake() *recordsRepoFake {
	return &recordsRepoFake{
		identity:  make(map[string]*domain.IdentityRecord),
		contract:  make(map[string]*domain.ContractRecord),
		financial: make(map[string]*domain.FinancialRecord),
	}
}

func (f *recordsRepoFake) UpsertIdentity(_ context.Context, rec *domain.IdentityRecord) error {
	copyRec := *rec
	f.identity[rec.DocumentID] = &copyRec
	return nil
}

func (f *recordsRepoFake) UpsertContract(_ context.Context, rec *domain.ContractRecord) error {
	copyRec := *rec
	f.contract[rec.DocumentID] = &copyRec
	return nil
}

func (f *recordsRepoFake) UpsertFinancial(_ context.Context, rec *domain.FinancialRecord) error {
	copyRec := *rec
	f.financial[rec.DocumentID] = &copyRec
	return nil
}

func (f *recordsRepoFake) HasIdentity(context.Context, string) (bool, error) {
	return f.hasIdentity, nil
}

func (f *recordsRepoFake) HasContract(context.Context, string) (bool, error) {
	return f.hasContract, nil
}

func (f *recordsRepoFake) HasFinancial(context.Context, string) (bool, error) {
	return f.hasFinancial, nil
}

type alertsRepoFake struct {
	due      []domain.ExpiringDocument
	expiring []domain.ExpiringDocument
	recorded map[string]bool
}

func newAlertsRepoFake() *alertsRepoFake {
	return &alertsRepoFake{recorded: make(map[string]bool)}
}

func (f *alertsRepoFake) ListDue(_ context.Context, _, _ time.Time, windowDay string) ([]domain.ExpiringDocument, error) {
	var out []domain.ExpiringDocument
	for _, doc := range f.due {
		if !f.recorded[doc.DocumentID+"|"+windowDay] {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *alertsRepoFake) ListExpiring(context.Context, time.Time, time.Time) ([]domain.ExpiringDocument, error) {
	return f.expiring, nil
}

func (f *alertsRepoFake) RecordAlert(_ context.Context, alert *domain.ExpiryAlert) (bool, error) {
	key := alert.DocumentID + "|" + alert.WindowDay
	if f.recorded[key] {
		return false, nil
	}
	f.recorded[key] = true
	return true, nil
}

type clientRepoFake struct {
	clients map[string]*domain.Client
	active  []string
}

func (f *clientRepoFake) GetByID(_ context.Context, id string) (*domain.Client, error) {
	client, ok := f.clients[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrClientNotFound, "get client", fmt.Errorf("id %s", id))
	}
	copyClient := *client
	return &copyClient, nil
}

func (f *clientRepoFake) ListActiveIDs(context.Context) ([]string, error) {
	return f.active, nil
}

type viewRepoFake struct {
	replaced []*domain.ClientView
}

func (f *viewRepoFake) Replace(_ context.Context, view *domain.ClientView) error {
	copyView := *view
	f.replaced = append(f.replaced, &copyView)
	return nil
}

func (f *viewRepoFake) GetByClientID(_ context.Context, clientID string) (*domain.ClientView, error) {
	for i := len(f.replaced) - 1; i >= 0; i-- {
		if f.replaced[i].ClientID == clientID {
			return f.replaced[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrClientNotFound, "get client view", fmt.Errorf("client %s", clientID))
}

type reviewRepoFake struct {
	items map[string]*domain.ReviewItem
}

func newReviewRepoFake() *reviewRepoFake {
	return &reviewRepoFake{items: make(map[string]*domain.ReviewItem)}
}

func (f *reviewRepoFake) Create(_ context.Context, item *domain.ReviewItem) error {
	if _, ok := f.items[item.DocumentID]; ok {
		return nil
	}
	copyItem := *item
	f.items[item.DocumentID] = &copyItem
	return nil
}

func (f *reviewRepoFake) GetByDocumentID(_ context.Context, documentID string) (*domain.ReviewItem, error) {
	item, ok := f.items[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get review item", fmt.Errorf("document %s", documentID))
	}
	copyItem := *item
	return &copyItem, nil
}

func (f *reviewRepoFake) ListPending(context.Context) ([]domain.ReviewItem, error) {
	var out []domain.ReviewItem
	for _, item := range f.items {
		if item.Status == domain.ReviewPending {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

func (f *reviewRepoFake) Resolve(_ context.Context, documentID string, decision domain.ReviewDecision, note string) error {
	item, ok := f.items[documentID]
	if !ok || item.Status != domain.ReviewPending {
		return domain.WrapError(domain.ErrDuplicateEvent, "resolve review item",
			fmt.Errorf("document %s has no pending review", documentID))
	}
	now := time.Now().UTC()
	item.Status = domain.ReviewResolved
	item.Decision = decision
	item.Note = note
	item.ResolvedAt = &now
	return nil
}

func (f *reviewRepoFake) Stats(context.Context) (*domain.ReviewStats, error) {
	stats := &domain.ReviewStats{ByReason: make(map[string]int), ComputedAt: time.Now().UTC()}
	for _, item := range f.items {
		if item.Status == domain.ReviewPending {
			stats.Pending++
		} else {
			stats.Resolved++
		}
		stats.ByReason[item.ReasonCode]++
	}
	return stats, nil
}

type storageFake struct {
	saved map[string]string
	err   error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}

type analysisFake struct {
	startCalls int
	startErr   error
	jobID      string

	results  *domain.AnalysisResults
	fetchErr error
}

func (f *analysisFake) StartJob(context.Context, string) (string, error) {
	f.startCalls++
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.jobID == "" {
		return fmt.Sprintf("job-%d", f.startCalls), nil
	}
	return f.jobID, nil
}

func (f *analysisFake) FetchResults(context.Context, string) (*domain.AnalysisResults, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.results, nil
}

type publishedMessage struct {
	Queue string
	MsgID string
	Data  []byte
}

type busFake struct {
	published []publishedMessage
	err       error
}

func (f *busFake) Publish(_ context.Context, queue, msgID string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{Queue: queue, MsgID: msgID, Data: data})
	return nil
}

func (f *busFake) Consume(context.Context, string, ports.MessageHandler) error {
	return fmt.Errorf("not implemented")
}

type mailerFake struct {
	sent []domain.MailMessage
	err  error
}

func (f *mailerFake) Send(_ context.Context, msg domain.MailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type validatorFake struct {
	err error
}

func (f *validatorFake) Validate(string, string, []byte) error {
	return f.err
}

type classifierFake struct {
	result domain.Classification
}

func (f *classifierFake) Classify(*domain.ExtractedFields) domain.Classification {
	return f.result
}

type viewAggregatorFake struct {
	recomputed []string
	err        error
}

func (f *viewAggregatorFake) Recompute(_ context.Context, clientID string) (*domain.ClientView, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.recomputed = append(f.recomputed, clientID)
	return &domain.ClientView{ClientID: clientID}, nil
}

func (f *viewAggregatorFake) RecomputeAll(context.Context) (int, error) {
	return len(f.recomputed), nil
}
