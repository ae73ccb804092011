package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTenderNotFound    = errors.New("tender not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrUnusableOutput    = errors.New("unusable model output")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrEnrichmentFailed  = errors.New("enrichment failed")
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
