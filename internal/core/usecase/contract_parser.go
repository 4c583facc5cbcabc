package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

var (
	contractNumberRe = regexp.MustCompile(`(?i)(?:contrato|contract)\s*(?:n[º°o]?\.?|number)?\s*[:#]?\s*([A-Z0-9][A-Z0-9/-]{3,24})`)
	contractTypeRe   = regexp.MustCompile(`(?i)contrato\s+de\s+([a-záéíóú]+(?:\s+[a-záéíóú]+)?)`)
	amountRe         = regexp.MustCompile(`(?i)(?:monto|importe|capital|principal|amount)\s*[:]?\s*(?:EUR|USD|€|\$)?\s*([\d.,]+)`)
	interestRateRe   = regexp.MustCompile(`(?i)(?:tasa|tipo)\s+de\s+inter[eé]s\s*[:]?\s*([\d.,]+)\s*%`)
	signDateRe       = regexp.MustCompile(`(?i)(?:fecha\s+(?:de\s+)?(?:firma|contrato|inicio))[^\d]*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	endDateRe        = regexp.MustCompile(`(?i)(?:fecha\s+(?:de\s+)?(?:fin|vencimiento|t[eé]rmino))[^\d]*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	accountNumberRe  = regexp.MustCompile(`(?i)(?:cuenta|account)\s*(?:n[º°o]?\.?|number)?\s*[:#]?\s*(\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4})`)
	partyNameRe      = regexp.MustCompile(`(?i)(?:prestatario|titular|borrower)\s*[:.]?\s*([A-Za-zÁÉÍÓÚÜÑáéíóúüñ ]{3,60})`)
	currencyRe       = regexp.MustCompile(`(?i)\b(EUR|USD|GBP|PAB)\b`)
)

func parseContract(f *domain.ExtractedFields) (*domain.ContractRecord, error) {
	text := f.FullText
	if strings.TrimSpace(text) == "" && len(f.Forms) == 0 && len(f.QueryAnswers) == 0 {
		return nil, domain.WrapError(domain.ErrParsing, "contract parse", fmt.Errorf("no extracted data for document %s", f.DocumentID))
	}

	rec := &domain.ContractRecord{
		DocumentID:  f.DocumentID,
		Currency:    "EUR",
		ExtractedAt: time.Now().UTC(),
	}

	rec.ContractNumber = formValue(f.Forms, f.QueryAnswers, "numero_contrato", "contract_number", "referencia")
	if rec.ContractNumber == "" {
		if m := contractNumberRe.FindStringSubmatch(text); m != nil {
			rec.ContractNumber = strings.TrimSpace(m[1])
		}
	}
	if m := contractTypeRe.FindStringSubmatch(text); m != nil {
		rec.ContractType = strings.ToLower(strings.TrimSpace(m[1]))
	}
	rec.PartyName = firstGroup(partyNameRe, text, formValue(f.Forms, f.QueryAnswers, "nombre_prestatario", "borrower_name", "titular_cuenta"))

	rawAmount := formValue(f.Forms, f.QueryAnswers, "monto_prestamo", "loan_amount", "valor_contrato")
	if rawAmount == "" {
		if m := amountRe.FindStringSubmatch(text); m != nil {
			rawAmount = m[1]
		}
	}
	if v, ok := parseAmount(rawAmount); ok {
		rec.Amount = v
	}

	rawRate := formValue(f.Forms, f.QueryAnswers, "tasa_interes", "interest_rate", "tipo_interes")
	if rawRate == "" {
		if m := interestRateRe.FindStringSubmatch(text); m != nil {
			rawRate = m[1]
		}
	}
	if v, ok := parseAmount(strings.TrimSuffix(rawRate, "%")); ok {
		rec.InterestRate = v
	}

	rec.StartDate = dateFromMatch(signDateRe, text, formValue(f.Forms, f.QueryAnswers, "fecha_contrato", "contract_date", "fecha_firma"))
	rec.EndDate = dateFromMatch(endDateRe, text, formValue(f.Forms, f.QueryAnswers, "fecha_fin"))

	rec.AccountNumber = formValue(f.Forms, f.QueryAnswers, "numero_cuenta", "account_number", "numero_producto")
	if rec.AccountNumber == "" {
		if m := accountNumberRe.FindStringSubmatch(text); m != nil {
			rec.AccountNumber = compactDigits(m[1])
		}
	}
	if m := currencyRe.FindStringSubmatch(text); m != nil {
		rec.Currency = strings.ToUpper(m[1])
	}

	if rec.ContractNumber == "" && rec.Amount == 0 && rec.AccountNumber == "" {
		return nil, domain.WrapError(domain.ErrParsing, "contract parse", fmt.Errorf("no contract fields found in document %s", f.DocumentID))
	}
	return rec, nil
}

func compactDigits(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "-", "")
}
