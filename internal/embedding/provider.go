// Package embedding turns uploaded images into face embeddings using an InsightFace server.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrNoFaceDetected is returned when the image contains no detectable face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrImageDecode is returned for uploads that are not a decodable image.
	ErrImageDecode = errors.New("invalid image format")

	// ErrAllStrategiesFailed is returned when no configured strategy could be prepared.
	ErrAllStrategiesFailed = errors.New("no embedding strategy available")
)

// Provider computes one face embedding per image.
type Provider interface {
	// Embed returns a unit-length embedding for the most prominent face in image.
	Embed(ctx context.Context, image []byte) ([]float32, error)
	// Name identifies the detector and recognizer in use.
	Name() string
}
