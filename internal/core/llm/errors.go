package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch means the provider returned vectors of the wrong size.
	// It is never retried and vectors are never padded or truncated.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// EmbeddingError wraps a failed call to the embedding service.
type EmbeddingError struct {
	Op        string
	BatchSize int
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s (batch of %d): %v", e.Op, e.BatchSize, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
