package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/llm"
)

var (
	_ DocumentEmbedder = (*ChunkEmbedder)(nil)
	_ Backfiller       = (*ChunkEmbedder)(nil)
)

// ChunkEmbedder fills in vectors for stored chunks, one row update per chunk.
//
// store:     chunk reads and per-row vector writes.
// embedder:  provider, normally an llm.BatchEmbedder.
// batchSize: chunks embedded per provider call; progress is persisted after each batch.
type ChunkEmbedder struct {
	store     core.ChunkStore
	embedder  core.EmbeddingProvider
	batchSize int
	logger    *slog.Logger
}

func NewChunkEmbedder(store core.ChunkStore, embedder core.EmbeddingProvider, batchSize int, logger *slog.Logger) *ChunkEmbedder {
	if batchSize <= 0 || batchSize > llm.MaxBatchSize {
		batchSize = llm.MaxBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkEmbedder{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With("component", "chunk-embedder"),
	}
}

// EmbedDocumentChunks embeds every chunk of documentID that has no vector yet
// and returns how many were written.
func (e *ChunkEmbedder) EmbedDocumentChunks(ctx context.Context, documentID string) (int, error) {
	chunks, err := e.store.GetChunksByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("load chunks for %s: %w", documentID, err)
	}

	ids := make([]string, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) > 0 {
			continue
		}
		ids = append(ids, c.ID)
		texts = append(texts, c.Content)
	}

	written := 0
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		vecs, err := e.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return written, fmt.Errorf("embed chunks %d-%d of %s: %w", start, end-1, documentID, err)
		}
		if len(vecs) != end-start {
			return written, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), end-start)
		}

		for i, v := range vecs {
			if err := e.store.UpdateChunkEmbedding(ctx, ids[start+i], v); err != nil {
				return written, fmt.Errorf("store embedding for chunk %s: %w", ids[start+i], err)
			}
			written++
		}
		e.logger.DebugContext(ctx, "embedding batch stored", "document_id", documentID, "count", end-start)
	}
	return written, nil
}

// Backfill embeds up to limit completed documents that still have chunks
// without vectors. It returns the number of documents fully embedded.
func (e *ChunkEmbedder) Backfill(ctx context.Context, limit int) (int, error) {
	ids, err := e.store.ListDocumentsMissingEmbeddings(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list documents missing embeddings: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, id := range ids {
		n, err := e.EmbedDocumentChunks(ctx, id)
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, llm.ErrDimensionMismatch) || ctx.Err() != nil {
				break
			}
			continue
		}
		done++
		e.logger.InfoContext(ctx, "backfilled embeddings", "document_id", id, "chunks", n)
	}
	return done, errors.Join(errs...)
}
