package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

const identityFullText = `DOCUMENTO NACIONAL DE IDENTIDAD
DNI 12345678Z
Nombre: Maria Carmen
Apellidos: Garcia Lopez
Nacionalidad: Espanola
Fecha de nacimiento: 12/03/1985
Fecha de caducidad: 01/05/2027`

func newSpecializedFixture(docStatus domain.DocumentStatus, fullText string) (*docRepoFake, *fieldsRepoFake, *recordsRepoFake, *reviewRepoFake, *viewAggregatorFake) {
	docs := newDocRepoFake(&domain.Document{ID: "doc-1", ClientID: "client-1", Status: docStatus})
	fields := newFieldsRepoFake(&domain.ExtractedFields{DocumentID: "doc-1", FullText: fullText})
	return docs, fields, newRecordsRepoFake(), newReviewRepoFake(), &viewAggregatorFake{}
}

func TestIdentityExtractorPersistsRecordAndExpiry(t *testing.T) {
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusClassified, identityFullText)
	ex := NewIdentityExtractor(docs, fields, records, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", ClientID: "client-1", FieldsRef: "doc-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	rec, ok := records.identity["doc-1"]
	if !ok {
		t.Fatal("identity record not persisted")
	}
	if rec.DocumentNumber != "12345678Z" {
		t.Fatalf("document number = %q, want 12345678Z", rec.DocumentNumber)
	}
	if rec.ExpiryDate == nil || !rec.ExpiryDate.Equal(time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expiry date = %v, want 2027-05-01", rec.ExpiryDate)
	}

	doc, _ := docs.GetByID(context.Background(), "doc-1")
	if doc.Status != domain.StatusProcessed {
		t.Fatalf("status = %s, want processed", doc.Status)
	}
	if doc.ExpiryDate == nil {
		t.Fatal("document expiry date not set from identity record")
	}
	if len(views.recomputed) != 1 || views.recomputed[0] != "client-1" {
		t.Fatalf("view recompute calls = %v, want [client-1]", views.recomputed)
	}
}

func TestIdentityExtractorParsingFailureRoutesToReview(t *testing.T) {
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusClassified, "texto sin ningun numero de documento")
	ex := NewIdentityExtractor(docs, fields, records, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", ClientID: "client-1", FieldsRef: "doc-1"})
	if !domain.IsKind(err, domain.ErrParsing) {
		t.Fatalf("err = %v, want ErrParsing", err)
	}

	if got := docs.status("doc-1"); got != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	item, getErr := reviews.GetByDocumentID(context.Background(), "doc-1")
	if getErr != nil {
		t.Fatalf("review item not created: %v", getErr)
	}
	if item.ReasonCode != "identity_parsing_error" {
		t.Fatalf("reason = %q, want identity_parsing_error", item.ReasonCode)
	}
	if len(records.identity) != 0 {
		t.Fatal("no record may be persisted on a parsing failure")
	}
	if len(views.recomputed) != 0 {
		t.Fatal("failed document must not trigger a view refresh")
	}
}

func TestSpecializedExtractorIgnoresProcessedDocument(t *testing.T) {
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusProcessed, identityFullText)
	ex := NewIdentityExtractor(docs, fields, records, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", FieldsRef: "doc-1"})
	if !domain.IsKind(err, domain.ErrDuplicateEvent) {
		t.Fatalf("err = %v, want ErrDuplicateEvent", err)
	}
	if len(records.identity) != 0 {
		t.Fatal("redelivered message must not write records")
	}
}

func TestSpecializedExtractorIgnoresFailedDocument(t *testing.T) {
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusFailed, identityFullText)
	ex := NewIdentityExtractor(docs, fields, records, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", FieldsRef: "doc-1"})
	if !domain.IsKind(err, domain.ErrDuplicateEvent) {
		t.Fatalf("err = %v, want ErrDuplicateEvent", err)
	}
}

func TestContractExtractorPersistsRecord(t *testing.T) {
	text := `CONTRATO DE PRESTAMO
Contrato Nº: PRE-2024-00123
Prestatario: Juan Perez Martin
Monto: EUR 35.000,00
Tasa de interes: 4,25 %
Fecha de firma: 15/02/2024`
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusClassified, text)
	ex := NewContractExtractor(docs, fields, records, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", ClientID: "client-1", FieldsRef: "doc-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	rec, ok := records.contract["doc-1"]
	if !ok {
		t.Fatal("contract record not persisted")
	}
	if rec.ContractNumber != "PRE-2024-00123" {
		t.Fatalf("contract number = %q", rec.ContractNumber)
	}
	if rec.Amount != 35000 {
		t.Fatalf("amount = %v, want 35000", rec.Amount)
	}
	if rec.InterestRate != 4.25 {
		t.Fatalf("interest rate = %v, want 4.25", rec.InterestRate)
	}
	if rec.Currency != "EUR" {
		t.Fatalf("currency = %q, want EUR", rec.Currency)
	}
}

func TestFinancialExtractorPersistsRecord(t *testing.T) {
	text := `EXTRACTO BANCARIO
Banco Santander
ES9121000418450200051332
Saldo actual: 12.345,67 EUR
Periodo: 01/01/2024 al 31/01/2024`
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusClassified, text)
	ex := NewFinancialExtractor(docs, fields, records, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", ClientID: "client-1", FieldsRef: "doc-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	rec, ok := records.financial["doc-1"]
	if !ok {
		t.Fatal("financial record not persisted")
	}
	if rec.AccountNumber != "ES9121000418450200051332" {
		t.Fatalf("account = %q, want the IBAN", rec.AccountNumber)
	}
	if rec.Balance != 12345.67 {
		t.Fatalf("balance = %v, want 12345.67", rec.Balance)
	}
	if rec.BankName == "" {
		t.Fatal("bank name not detected")
	}
	if rec.PeriodStart == nil || rec.PeriodEnd == nil {
		t.Fatal("statement period not parsed")
	}
}

func TestGenericExtractorCompletesLifecycleWithoutRecord(t *testing.T) {
	docs, fields, records, reviews, views := newSpecializedFixture(domain.StatusClassified, "texto generico sin estructura")
	ex := NewGenericExtractor(docs, fields, reviews, views, testLogger())

	err := ex.Handle(context.Background(), domain.PipelineMessage{DocumentID: "doc-1", ClientID: "client-1", FieldsRef: "doc-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := docs.status("doc-1"); got != domain.StatusProcessed {
		t.Fatalf("status = %s, want processed", got)
	}
	if len(records.identity)+len(records.contract)+len(records.financial) != 0 {
		t.Fatal("generic path must not write specialized records")
	}
	if len(views.recomputed) != 1 {
		t.Fatalf("view recompute calls = %d, want 1", len(views.recomputed))
	}
}
