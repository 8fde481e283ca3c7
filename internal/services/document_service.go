package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

// ErrDocumentProcessing is returned when an operation would race a running ingestion.
var ErrDocumentProcessing = core.ErrDocumentProcessing

type DocumentService struct {
	store  core.DocumentStore
	logger *slog.Logger
}

func NewDocumentService(store core.DocumentStore, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{store: store, logger: logger.With("component", "document-service")}
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.GetDocumentByID(ctx, id)
}

// RetryDocument puts a document back in the queue whatever its state, clearing
// the error and any chunks. Manual retries do not count against the
// automatic retry budget.
func (s *DocumentService) RetryDocument(ctx context.Context, id string) error {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.ResetDocumentForRetry(ctx, id, false); err != nil {
		return fmt.Errorf("reset document %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "document queued for manual retry",
		"document_id", id, "previous_status", doc.Status, "previous_error", doc.ProcessingError)
	return nil
}

// ReprocessDocument re-queues a completed or failed document.
func (s *DocumentService) ReprocessDocument(ctx context.Context, id string) error {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == models.StatusProcessing {
		return fmt.Errorf("reprocess %s: %w", id, ErrDocumentProcessing)
	}
	if err := s.store.ResetDocumentForRetry(ctx, id, false); err != nil {
		return fmt.Errorf("reset document %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "document queued for reprocessing", "document_id", id, "previous_status", doc.Status)
	return nil
}
