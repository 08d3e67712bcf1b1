// Package recognition is the boundary to the external inference server that
// turns images into face embeddings and facial landmarks.
package recognition

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Embedding is the identity vector of the most prominent face in an image.
type Embedding struct {
	Vector []float32
	Live   bool
}

// Extractor converts an image into a face embedding.
// Implementations must never return a vector together with a failed liveness verdict.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Embedding, error)
}

// LandmarkDetector converts an image into named facial landmarks.
type LandmarkDetector interface {
	Detect(ctx context.Context, image []byte) (facematch.Landmarks, error)
}

// Failures reported by the inference boundary, usable with errors.Is.
var (
	ErrNoFace        = &apperror.Error{Code: apperror.CodeRecognition, Reason: apperror.ReasonNoFace}
	ErrSpoofDetected = &apperror.Error{Code: apperror.CodeSpoof}
	ErrProcessing    = &apperror.Error{Code: apperror.CodeTransient}
)
