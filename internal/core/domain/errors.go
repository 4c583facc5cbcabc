package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrDocumentNotFound = errors.New("document not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrNoContactInfo    = errors.New("client has no contact info")
	ErrUnknownJob       = errors.New("unknown analysis job")
	ErrDuplicateEvent   = errors.New("duplicate event")
	ErrStatusConflict   = errors.New("document status conflict")
	ErrParsing          = errors.New("parsing failed")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
