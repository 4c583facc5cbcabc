package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

func expiringDoc(id string, contact string, daysLeft int, now time.Time) domain.ExpiringDocument {
	return domain.ExpiringDocument{
		DocumentID:   id,
		ClientID:     "client-" + id,
		ClientName:   "Cliente " + id,
		ContactEmail: contact,
		DocumentType: "dni",
		ExpiryDate:   now.AddDate(0, 0, daysLeft),
	}
}

func TestSweepSendsOncePerWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	alerts := newAlertsRepoFake()
	alerts.due = []domain.ExpiringDocument{
		expiringDoc("d1", "a@example.com", 3, now),
		expiringDoc("d2", "b@example.com", 10, now),
	}
	mail := &mailerFake{}
	uc := NewExpiryUseCase(alerts, &clientRepoFake{}, mail, 30, "documentos@bank.example", testLogger())

	summary, err := uc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Scanned != 2 || summary.Sent != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(mail.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(mail.sent))
	}

	// Same window, same documents: everything was already alerted.
	summary, err = uc.Sweep(context.Background(), now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if summary.Sent != 0 {
		t.Fatalf("second sweep sent %d, want 0", summary.Sent)
	}
	if len(mail.sent) != 2 {
		t.Fatalf("second sweep re-sent mail, total %d", len(mail.sent))
	}

	// Next calendar day opens a new window.
	summary, err = uc.Sweep(context.Background(), now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("next-day Sweep: %v", err)
	}
	if summary.Sent != 2 {
		t.Fatalf("next-day sweep sent %d, want 2", summary.Sent)
	}
}

func TestSweepUrgencyTiers(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	alerts := newAlertsRepoFake()
	alerts.due = []domain.ExpiringDocument{
		expiringDoc("d1", "a@example.com", 3, now),
		expiringDoc("d2", "b@example.com", 10, now),
		expiringDoc("d3", "c@example.com", 25, now),
	}
	mail := &mailerFake{}
	uc := NewExpiryUseCase(alerts, &clientRepoFake{}, mail, 30, "documentos@bank.example", testLogger())

	if _, err := uc.Sweep(context.Background(), now); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(mail.sent) != 3 {
		t.Fatalf("sent %d mails, want 3", len(mail.sent))
	}
	wantKinds := []string{"urgente", "recordatorio", "aviso_inicial"}
	for i, want := range wantKinds {
		if mail.sent[i].Kind != want {
			t.Errorf("mail %d kind = %q, want %q", i, mail.sent[i].Kind, want)
		}
	}
}

func TestSweepSkipsClientsWithoutContact(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	alerts := newAlertsRepoFake()
	alerts.due = []domain.ExpiringDocument{expiringDoc("d1", "", 3, now)}
	mail := &mailerFake{}
	uc := NewExpiryUseCase(alerts, &clientRepoFake{}, mail, 30, "documentos@bank.example", testLogger())

	summary, err := uc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Skipped != 1 || summary.Sent != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(mail.sent) != 0 {
		t.Fatal("no mail may be attempted without a contact address")
	}
}

func TestSweepMailFailureLeavesNoAlertRow(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	alerts := newAlertsRepoFake()
	alerts.due = []domain.ExpiringDocument{expiringDoc("d1", "a@example.com", 3, now)}
	mail := &mailerFake{err: errors.New("relay down")}
	uc := NewExpiryUseCase(alerts, &clientRepoFake{}, mail, 30, "documentos@bank.example", testLogger())

	summary, err := uc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if summary.Failed != 1 || summary.Sent != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(alerts.recorded) != 0 {
		t.Fatal("a failed send must leave no alert row, so the next sweep retries")
	}

	// The relay recovers; the same window can still deliver.
	mail.err = nil
	summary, err = uc.Sweep(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("retry Sweep: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("retry sweep sent %d, want 1", summary.Sent)
	}
}

func TestStatsBucketsByDaysRemaining(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	alerts := newAlertsRepoFake()
	alerts.expiring = []domain.ExpiringDocument{
		expiringDoc("d1", "a@example.com", 2, now),
		expiringDoc("d2", "b@example.com", 5, now),
		expiringDoc("d3", "c@example.com", 12, now),
		expiringDoc("d4", "d@example.com", 28, now),
	}
	uc := NewExpiryUseCase(alerts, &clientRepoFake{}, &mailerFake{}, 30, "documentos@bank.example", testLogger())

	stats, err := uc.Stats(context.Background(), now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 {
		t.Fatalf("total = %d, want 4", stats.Total)
	}
	if stats.Within5Days != 2 || stats.Within15Days != 1 || stats.Within30Days != 1 {
		t.Fatalf("unexpected buckets: %+v", stats)
	}
}

func TestSendInformationRequest(t *testing.T) {
	clients := &clientRepoFake{clients: map[string]*domain.Client{
		"c1": {ID: "c1", Name: "Cliente Uno", ContactEmail: "uno@example.com"},
		"c2": {ID: "c2", Name: "Cliente Dos"},
	}}
	mail := &mailerFake{}
	uc := NewExpiryUseCase(newAlertsRepoFake(), clients, mail, 30, "documentos@bank.example", testLogger())

	sent, err := uc.SendInformationRequest(context.Background(), "c1", "extracto de enero")
	if err != nil || !sent {
		t.Fatalf("SendInformationRequest = (%v, %v), want (true, nil)", sent, err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mail.sent))
	}
	if mail.sent[0].To != "uno@example.com" || mail.sent[0].Kind != "information_request" {
		t.Fatalf("unexpected mail: %+v", mail.sent[0])
	}

	if _, err := uc.SendInformationRequest(context.Background(), "c2", ""); !domain.IsKind(err, domain.ErrNoContactInfo) {
		t.Fatalf("err = %v, want ErrNoContactInfo", err)
	}
	if _, err := uc.SendInformationRequest(context.Background(), "missing", ""); !domain.IsKind(err, domain.ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestSendInformationRequestMailFailure(t *testing.T) {
	clients := &clientRepoFake{clients: map[string]*domain.Client{
		"c1": {ID: "c1", Name: "Cliente Uno", ContactEmail: "uno@example.com"},
	}}
	mail := &mailerFake{err: errors.New("relay down")}
	uc := NewExpiryUseCase(newAlertsRepoFake(), clients, mail, 30, "documentos@bank.example", testLogger())

	sent, err := uc.SendInformationRequest(context.Background(), "c1", "")
	if sent || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("SendInformationRequest = (%v, %v), want (false, ErrTemporary)", sent, err)
	}
}
