package gallery

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageCorrupt is returned when a persisted gallery exists but cannot be decoded.
	ErrStorageCorrupt = errors.New("gallery storage is corrupt")

	// ErrRecordNotFound is returned when no record has the requested ID.
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmptyLabel is returned when a record is enrolled without a label.
	ErrEmptyLabel = errors.New("label must not be empty")

	// ErrInvalidLabel is returned by Registry.Register when a label fails normalization.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrInvalidEmbedding is returned for embeddings that cannot be normalized (zero, NaN or Inf).
	ErrInvalidEmbedding = errors.New("embedding has no direction")
)

// DimensionMismatchError indicates an embedding whose length differs from the gallery dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// corruptf wraps ErrStorageCorrupt with detail about what failed to decode.
func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStorageCorrupt, fmt.Sprintf(format, args...))
}
