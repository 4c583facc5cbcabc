package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

var (
	ibanRe          = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{4}[A-Z0-9]{4}[A-Z0-9]{4}[A-Z0-9]{4}(?:[A-Z0-9]{4})?\b`)
	plainAccountRe  = regexp.MustCompile(`(?i)(?:cuenta|n[º°]\s*cuenta|account)[^\d]{1,20}(\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4})`)
	balanceRe       = regexp.MustCompile(`(?i)(?:saldo|balance)(?:\s+actual|\s+final|\s+disponible)?(?:\s*:|\s+es|\s+de)?\s*(?:EUR|€|\$)?\s*([\d.,]+)`)
	statementDateRe = regexp.MustCompile(`(?i)(?:fecha(?:\s+extracto)?|statement date)(?:\s*:|\s+del|\s+de)?\s+(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	periodRe        = regexp.MustCompile(`(?i)periodo(?:\s*:|\s+del)?\s+(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})(?:\s+al\s+|\s*-\s*)(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	bankNameRe      = regexp.MustCompile(`(?i)\b(banco\s+[a-záéíóúüñ]+(?:\s+[a-záéíóúüñ]+)?|caixabank|bankinter|santander|bbva)\b`)
)

func parseFinancial(f *domain.ExtractedFields) (*domain.FinancialRecord, error) {
	text := f.FullText
	if strings.TrimSpace(text) == "" && len(f.Forms) == 0 && len(f.QueryAnswers) == 0 {
		return nil, domain.WrapError(domain.ErrParsing, "financial parse", fmt.Errorf("no extracted data for document %s", f.DocumentID))
	}

	rec := &domain.FinancialRecord{
		DocumentID:  f.DocumentID,
		Currency:    "EUR",
		ExtractedAt: time.Now().UTC(),
	}

	if m := ibanRe.FindString(text); m != "" {
		rec.AccountNumber = m
	} else if m := plainAccountRe.FindStringSubmatch(text); m != nil {
		rec.AccountNumber = compactDigits(m[1])
	} else {
		rec.AccountNumber = formValue(f.Forms, f.QueryAnswers, "numero_cuenta", "account_number", "iban")
	}

	rawBalance := formValue(f.Forms, f.QueryAnswers, "saldo", "balance", "saldo_actual")
	if rawBalance == "" {
		if m := balanceRe.FindStringSubmatch(text); m != nil {
			rawBalance = m[1]
		}
	}
	if v, ok := parseAmount(rawBalance); ok {
		rec.Balance = v
	}

	rec.StatementDate = dateFromMatch(statementDateRe, text, formValue(f.Forms, f.QueryAnswers, "fecha_extracto", "statement_date"))
	if m := periodRe.FindStringSubmatch(text); m != nil {
		rec.PeriodStart = parseDate(m[1])
		rec.PeriodEnd = parseDate(m[2])
	}
	if m := bankNameRe.FindString(text); m != "" {
		rec.BankName = strings.TrimSpace(m)
	}

	if rec.AccountNumber == "" && rawBalance == "" {
		return nil, domain.WrapError(domain.ErrParsing, "financial parse", fmt.Errorf("no financial fields found in document %s", f.DocumentID))
	}
	return rec, nil
}
