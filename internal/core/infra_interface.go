package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/markdave123-py/docingest/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDocumentProcessing is returned when a document is already being processed.
var ErrDocumentProcessing = errors.New("document is currently processing")

// DocumentStore covers the document state transitions owned by the ingestion pipeline.
type DocumentStore interface {
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)

	// ClaimNextPendingDocument atomically moves the oldest pending document to processing.
	// Returns ErrNotFound when the queue is empty.
	ClaimNextPendingDocument(ctx context.Context) (*models.Document, error)
	// MarkDocumentProcessing moves a document to processing from any other status.
	// Returns ErrDocumentProcessing when it is already processing.
	MarkDocumentProcessing(ctx context.Context, id string) error

	// CompleteDocument replaces the chunk set and writes the document metadata in one transaction.
	CompleteDocument(ctx context.Context, id string, result *models.ProcessingResult) error
	// FailDocument deletes any chunks and records the error.
	FailDocument(ctx context.Context, id string, processingError string) error

	ListAutoRetryCandidates(ctx context.Context, uploadedSince time.Time, maxAutoRetries, limit int) ([]models.Document, error)
	// ResetDocumentForRetry deletes chunks, clears the error and sets the status back to pending.
	ResetDocumentForRetry(ctx context.Context, id string, countAutoRetry bool) error
}

// ChunkStore covers chunk reads, per-row vector writes and nearest-neighbour search.
type ChunkStore interface {
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error
	ListDocumentsMissingEmbeddings(ctx context.Context, limit int) ([]string, error)
	SearchChunks(ctx context.Context, scopeID string, queryVec []float32, limit int) ([]models.ChunkMatch, error)
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	DocumentStore
	ChunkStore
	Close() error
}

// ObjectClient fetches source files kept in object storage.
type ObjectClient interface {
	DownloadFile(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}
