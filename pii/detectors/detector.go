package pii

import (
	"context"
)

// Detector produces entity candidates for a document.
type Detector interface {
	GetName() string
	Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error)
	Close() error
}

// TokenClassifier is the ML inference boundary: one call classifies a text
// that already fits the model's token budget. Implementations must never be
// assumed to succeed; callers own retries and degradation.
type TokenClassifier interface {
	GetName() string
	Classify(ctx context.Context, text string) ([]TokenPrediction, error)
	Close() error
}

// CloseDetector closes a detector, tolerating nil.
func CloseDetector(detector Detector) error {
	if detector == nil {
		return nil
	}
	return detector.Close()
}
