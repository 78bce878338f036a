// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the embedding server
	MaxImageSize = 1920

	// MaxImagePixels caps the declared width*height of an upload before it is decoded
	MaxImagePixels = 50_000_000

	// JPEGQuality is the quality used when re-encoding resized uploads
	JPEGQuality = 85

	// DefaultConcurrency is the default number of parallel workers for batch enrollment
	DefaultConcurrency = 5
)

// Embedding server constants
const (
	// DefaultEmbeddingURL is the InsightFace server used when EMBEDDING_URL is unset
	DefaultEmbeddingURL = "http://localhost:8000"

	// DefaultEmbeddingTimeoutSec is the default per-request timeout for the embedding server
	DefaultEmbeddingTimeoutSec = 60
)
