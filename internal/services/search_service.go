package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

// ErrInvalidSearch covers caller mistakes: empty query, bad limit, missing scope.
var ErrInvalidSearch = errors.New("invalid search request")

type SearchService struct {
	chunks   core.ChunkStore
	embedder core.EmbeddingProvider
	logger   *slog.Logger
}

func NewSearchService(chunks core.ChunkStore, embedder core.EmbeddingProvider, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{chunks: chunks, embedder: embedder, logger: logger.With("component", "search")}
}

// SearchSimilarChunks returns up to limit chunks from completed documents in
// scopeID, most similar first. A limit of 0 selects DefaultSearchLimit.
func (s *SearchService) SearchSimilarChunks(ctx context.Context, scopeID, query string, limit int) ([]models.ChunkMatch, error) {
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidSearch)
	case strings.TrimSpace(scopeID) == "":
		return nil, fmt.Errorf("%w: scope must not be empty", ErrInvalidSearch)
	case limit == 0:
		limit = DefaultSearchLimit
	case limit < 0 || limit > MaxSearchLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidSearch, MaxSearchLimit)
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	matches, err := s.chunks.SearchChunks(ctx, scopeID, vecs[0], limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	for i := range matches {
		matches[i].Similarity = clampUnit(matches[i].Similarity)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	s.logger.DebugContext(ctx, "similarity search", "scope_id", scopeID, "limit", limit, "results", len(matches))
	return matches, nil
}

// clampUnit maps cosine similarity (which can be negative) into [0,1].
func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
