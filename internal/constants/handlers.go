// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MaxMultipartMemory is the part of an upload kept in memory before spilling to disk
	MaxMultipartMemory = 32 << 20
)

// Server constants
const (
	// RequestTimeoutSec bounds a single request, including the embedding call
	RequestTimeoutSec = 120

	// ShutdownTimeoutSec is how long in-flight requests get to finish on shutdown
	ShutdownTimeoutSec = 30
)
