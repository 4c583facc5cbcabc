package httpadapter

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

// writeExpiryWorkbook streams the near-expiry documents as an xlsx workbook,
// one row per document with its urgency tier.
func writeExpiryWorkbook(w http.ResponseWriter, docs []domain.ExpiringDocument, now time.Time) {
	const sheet = "Expiring documents"

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "build workbook: "+err.Error())
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Document ID", "Client ID", "Client name", "Contact email", "Document type", "Expiry date", "Days left", "Urgency"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	now = now.UTC()
	for i, doc := range docs {
		daysLeft := int(doc.ExpiryDate.Sub(now).Hours() / 24)
		values := []any{
			doc.DocumentID,
			doc.ClientID,
			doc.ClientName,
			doc.ContactEmail,
			doc.DocumentType,
			doc.ExpiryDate.Format("2006-01-02"),
			daysLeft,
			urgencyTier(daysLeft),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	filename := fmt.Sprintf("expiry-report-%s.xlsx", now.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(w); err != nil {
		// Headers are already sent; the broken stream is the only signal left.
		slog.Warn("expiry workbook write failed", "error", err)
	}
}

func urgencyTier(daysLeft int) string {
	switch {
	case daysLeft <= 5:
		return "urgente"
	case daysLeft <= 15:
		return "recordatorio"
	default:
		return "aviso_inicial"
	}
}
