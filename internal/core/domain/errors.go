package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInsightNotFound    = errors.New("insights not found")
	ErrAlreadyProcessed   = errors.New("document already processed")
	ErrNotYetProcessed    = errors.New("document not yet processed")
	ErrProcessingConflict = errors.New("document is not pending processing")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrTemporary          = errors.New("temporary failure")

	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtractionIO      = errors.New("text extraction io error")
	ErrEmptyInput        = errors.New("no text could be extracted from the document")

	ErrModelQuery       = errors.New("language model query failed")
	ErrRateLimited      = errors.New("language model rate limited")
	ErrModelUnavailable = errors.New("language model unavailable")
	ErrModelTimeout     = errors.New("language model timeout")

	ErrExtractionFailed = errors.New("extraction failed")
	ErrModelQueryFailed = errors.New("model query failed")
	ErrProcessingFailed = errors.New("processing failed")
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

// IsProcessingFailure reports whether err came out of the failure path of a
// processing attempt, i.e. the document was left in the failed status.
func IsProcessingFailure(err error) bool {
	return errors.Is(err, ErrExtractionFailed) ||
		errors.Is(err, ErrModelQueryFailed) ||
		errors.Is(err, ErrProcessingFailed)
}
