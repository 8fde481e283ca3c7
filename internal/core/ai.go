package core

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedding_provider.go -package=mocks github.com/markdave123-py/docingest/internal/core EmbeddingProvider

import "context"

// EmbeddingProvider turns texts into fixed-dimension vectors, one per input, in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
