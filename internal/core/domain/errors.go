package domain

import "errors"

// Domain errors represent pipeline failures.
// Adapters wrap them with context using fmt.Errorf("%w: ...").
var (
	// ErrNotFound indicates a requested chunk or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed or missing source file, or an
	// empty query. Batch callers skip the item and continue.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractionFailed indicates every extraction tier, OCR included,
	// produced no usable text.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrProviderFailure indicates the embedding provider call failed
	// (network, quota, timeout or a malformed response).
	ErrProviderFailure = errors.New("embedding provider failure")

	// ErrStoreFailure indicates the persistence layer rejected an operation.
	ErrStoreFailure = errors.New("store failure")

	// ErrInvalidConfig indicates settings that cannot be used, such as a
	// chunk overlap not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or could not be reached at startup.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)
