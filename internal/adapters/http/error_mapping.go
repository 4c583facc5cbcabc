package httpadapter

import (
	"net/http"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

// mapError turns domain error kinds into an HTTP status plus a stable reason
// code for the response body.
func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "document_not_found"
	case domain.IsKind(err, domain.ErrClientNotFound):
		return http.StatusNotFound, "client_not_found"
	case domain.IsKind(err, domain.ErrNoContactInfo):
		return http.StatusUnprocessableEntity, "no_contact_info"
	case domain.IsKind(err, domain.ErrStatusConflict):
		return http.StatusConflict, "status_conflict"
	case domain.IsKind(err, domain.ErrDuplicateEvent):
		return http.StatusConflict, "duplicate"
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "temporary_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
