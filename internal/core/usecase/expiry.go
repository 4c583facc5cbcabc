package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
)

// ExpiryUseCase is a state machine over time, not messages: the sweep is a
// stateless function invoked by the scheduler or on demand via the API. The
// alert table keyed (document, window day) keeps repeated sweeps inside one
// window from re-notifying.
type ExpiryUseCase struct {
	alerts        ports.ExpiryAlertRepository
	clients       ports.ClientRepository
	mailer        ports.Mailer
	lookaheadDays int
	sourceAddress string
	log           *slog.Logger
}

func NewExpiryUseCase(
	alerts ports.ExpiryAlertRepository,
	clients ports.ClientRepository,
	mailer ports.Mailer,
	lookaheadDays int,
	sourceAddress string,
	log *slog.Logger,
) *ExpiryUseCase {
	if lookaheadDays <= 0 {
		lookaheadDays = 30
	}
	return &ExpiryUseCase{
		alerts:        alerts,
		clients:       clients,
		mailer:        mailer,
		lookaheadDays: lookaheadDays,
		sourceAddress: sourceAddress,
		log:           log,
	}
}

func (uc *ExpiryUseCase) Sweep(ctx context.Context, now time.Time) (*domain.SweepSummary, error) {
	now = now.UTC()
	window := domain.AlertWindow(now)
	due, err := uc.alerts.ListDue(ctx, now, now.AddDate(0, 0, uc.lookaheadDays), window)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list due documents", err)
	}

	summary := &domain.SweepSummary{Scanned: len(due)}
	for _, doc := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if doc.ContactEmail == "" {
			uc.log.Warn("expiring document without client contact", "document_id", doc.DocumentID, "client_id", doc.ClientID)
			summary.Skipped++
			continue
		}

		daysLeft := int(doc.ExpiryDate.Sub(now).Hours() / 24)
		if err := uc.mailer.Send(ctx, expiryMail(doc, daysLeft)); err != nil {
			// Email not sent means no alert row either: the next sweep retries.
			uc.log.Error("expiry notification failed", "document_id", doc.DocumentID, "error", err)
			summary.Failed++
			continue
		}

		inserted, err := uc.alerts.RecordAlert(ctx, &domain.ExpiryAlert{
			DocumentID: doc.DocumentID,
			WindowDay:  window,
			ExpiryDate: doc.ExpiryDate,
			SentAt:     time.Now().UTC(),
		})
		if err != nil {
			uc.log.Error("record expiry alert failed", "document_id", doc.DocumentID, "error", err)
			summary.Failed++
			continue
		}
		if !inserted {
			// A concurrent sweep already claimed this window.
			summary.Skipped++
			continue
		}
		summary.Sent++
	}

	uc.log.Info("expiry sweep finished",
		"window", window,
		"scanned", summary.Scanned,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (uc *ExpiryUseCase) Stats(ctx context.Context, now time.Time) (*domain.ExpiryStats, error) {
	now = now.UTC()
	expiring, err := uc.alerts.ListExpiring(ctx, now, now.AddDate(0, 0, 30))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list expiring documents", err)
	}

	stats := &domain.ExpiryStats{Total: len(expiring), ComputedAt: now}
	for _, doc := range expiring {
		days := int(doc.ExpiryDate.Sub(now).Hours() / 24)
		switch {
		case days <= 5:
			stats.Within5Days++
		case days <= 15:
			stats.Within15Days++
		default:
			stats.Within30Days++
		}
	}
	return stats, nil
}

// Expiring lists every document inside the lookahead window, alerted or not.
// It backs the expiry report export.
func (uc *ExpiryUseCase) Expiring(ctx context.Context, now time.Time) ([]domain.ExpiringDocument, error) {
	now = now.UTC()
	expiring, err := uc.alerts.ListExpiring(ctx, now, now.AddDate(0, 0, uc.lookaheadDays))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list expiring documents", err)
	}
	return expiring, nil
}

// SendInformationRequest sends an ad-hoc request for documentation to one
// client. Expected absences (unknown client, no contact email) surface as
// typed errors so the API can answer with a reason code; nothing is recorded
// unless the email actually went out.
func (uc *ExpiryUseCase) SendInformationRequest(ctx context.Context, clientID, details string) (bool, error) {
	client, err := uc.clients.GetByID(ctx, clientID)
	if err != nil {
		if domain.IsKind(err, domain.ErrClientNotFound) {
			return false, err
		}
		return false, domain.WrapError(domain.ErrTemporary, "fetch client", err)
	}
	if strings.TrimSpace(client.ContactEmail) == "" {
		return false, domain.WrapError(domain.ErrNoContactInfo, "send information request", fmt.Errorf("client %s", clientID))
	}

	body := fmt.Sprintf("Dear %s,\n\nPlease provide the requested documentation for your file.\n", client.Name)
	if strings.TrimSpace(details) != "" {
		body += "\nDetails: " + details + "\n"
	}
	msg := domain.MailMessage{
		To:      client.ContactEmail,
		Subject: "Information request regarding your documentation",
		Body:    body,
		Kind:    "information_request",
	}
	if err := uc.mailer.Send(ctx, msg); err != nil {
		return false, domain.WrapError(domain.ErrTemporary, "send information request", err)
	}

	uc.log.Info("information request sent", "client_id", clientID)
	return true, nil
}

func expiryMail(doc domain.ExpiringDocument, daysLeft int) domain.MailMessage {
	// Urgency tiers follow the bank's notification policy: 5/15/30 days.
	kind := "aviso_inicial"
	switch {
	case daysLeft <= 5:
		kind = "urgente"
	case daysLeft <= 15:
		kind = "recordatorio"
	}
	return domain.MailMessage{
		To:      doc.ContactEmail,
		Subject: fmt.Sprintf("Document %s expires in %d days", doc.DocumentType, daysLeft),
		Body: fmt.Sprintf(
			"Dear %s,\n\nYour document (%s) expires on %s. Please submit a renewed copy.\n",
			doc.ClientName, doc.DocumentType, doc.ExpiryDate.Format("2006-01-02"),
		),
		Kind: kind,
	}
}
