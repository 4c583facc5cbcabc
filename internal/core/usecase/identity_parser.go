package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

// Regexes mirror the patterns the bank uses on DNI, passports and Panamanian
// cedulas. All matching is case-insensitive and deterministic.
var (
	dniNumberRe      = regexp.MustCompile(`(?i)(?:DNI|Documento Nacional de Identidad)[^\d]*(\d{8}[A-Z]?)`)
	passportNumberRe = regexp.MustCompile(`(?i)(?:Pasaporte|Passport)[^\dA-Z]*([A-Z]{1,2}[0-9]{6,7})`)
	cedulaNumberRe   = regexp.MustCompile(`(?i)(?:\b|cedula|identidad|id)[^\d]*(\d{1,2}-\d{1,3}-\d{1,4})`)
	givenNamesRe     = regexp.MustCompile(`(?i)(?:Nombre|Name)\s*[:.]?\s*([A-Za-zÁÉÍÓÚÜÑáéíóúüñ ]{2,60})`)
	surnamesRe       = regexp.MustCompile(`(?i)(?:Apellidos|Surname)\s*[:.]?\s*([A-Za-zÁÉÍÓÚÜÑáéíóúüñ ]{2,60})`)
	birthDateRe      = regexp.MustCompile(`(?i)(?:Fecha de nacimiento|Date of birth)[^\d]*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	issueDateRe      = regexp.MustCompile(`(?i)(?:Fecha de expedici[oó]n|Date of issue|Expedida)[^\d]*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	idExpiryRe       = regexp.MustCompile(`(?i)(?:Fecha de caducidad|Date of expiry|Expira|Vence)[^\d]*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	nationalityRe    = regexp.MustCompile(`(?i)(?:Nacionalidad|Nationality)\s*[:.]?\s*([A-Za-zÁÉÍÓÚÜÑáéíóúüñ ]{2,40})`)
)

func parseIdentity(f *domain.ExtractedFields) (*domain.IdentityRecord, error) {
	text := f.FullText
	if strings.TrimSpace(text) == "" && len(f.Forms) == 0 && len(f.QueryAnswers) == 0 {
		return nil, domain.WrapError(domain.ErrParsing, "identity parse", fmt.Errorf("no extracted data for document %s", f.DocumentID))
	}

	number := formValue(f.Forms, f.QueryAnswers, "numero_documento", "document_number", "dni", "cedula")
	if number == "" {
		for _, re := range []*regexp.Regexp{dniNumberRe, passportNumberRe, cedulaNumberRe} {
			if m := re.FindStringSubmatch(text); m != nil {
				number = m[1]
				break
			}
		}
	}
	if number == "" {
		return nil, domain.WrapError(domain.ErrParsing, "identity parse", fmt.Errorf("no identity number found in document %s", f.DocumentID))
	}

	rec := &domain.IdentityRecord{
		DocumentID:     f.DocumentID,
		DocumentNumber: number,
		GivenNames:     firstGroup(givenNamesRe, text, formValue(f.Forms, f.QueryAnswers, "nombre", "given_names")),
		Surnames:       firstGroup(surnamesRe, text, formValue(f.Forms, f.QueryAnswers, "apellidos", "surname")),
		Nationality:    firstGroup(nationalityRe, text, formValue(f.Forms, f.QueryAnswers, "nacionalidad", "nationality")),
		BirthDate:      dateFromMatch(birthDateRe, text, formValue(f.Forms, f.QueryAnswers, "fecha_nacimiento", "birth_date")),
		IssueDate:      dateFromMatch(issueDateRe, text, formValue(f.Forms, f.QueryAnswers, "fecha_expedicion", "issue_date")),
		ExpiryDate:     dateFromMatch(idExpiryRe, text, formValue(f.Forms, f.QueryAnswers, "fecha_caducidad", "expiry_date")),
		ExtractedAt:    time.Now().UTC(),
	}
	return rec, nil
}

func firstGroup(re *regexp.Regexp, text, fallback string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fallback
}

func dateFromMatch(re *regexp.Regexp, text, fallback string) *time.Time {
	if m := re.FindStringSubmatch(text); m != nil {
		if t := parseDate(m[1]); t != nil {
			return t
		}
	}
	return parseDate(fallback)
}
