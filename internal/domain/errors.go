package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed document or query. Terminal, never retried.
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedMedia signals an image outside the allow-list or above the size cap. Terminal.
	ErrUnsupportedMedia = errors.New("unsupported media")
	// ErrNetworkFetch signals a failed fetch of a remote image.
	ErrNetworkFetch = errors.New("network fetch error")
	// ErrEmbeddingService signals an embedding model failure.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrEmbeddingQuotaExceeded signals that the configured token budget is spent.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrStorage signals a vector store failure.
	ErrStorage = errors.New("storage error")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrQueueTransport signals that a whole queue batch could not be delivered to the broker.
	ErrQueueTransport = errors.New("queue transport error")
)

// IsTerminal reports whether err can never succeed on retry.
// Terminal errors are acknowledged by the ingestion worker instead of redelivered.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnsupportedMedia)
}

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// UnsupportedMediaf builds an ErrUnsupportedMedia with a formatted detail.
func UnsupportedMediaf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnsupportedMedia)
}
