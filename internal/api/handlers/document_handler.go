package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/docingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/docingest/internal/models"
)

// DocumentManager is the document surface of services.DocumentService.
type DocumentManager interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	RetryDocument(ctx context.Context, id string) error
	ReprocessDocument(ctx context.Context, id string) error
}

type DocumentHandler struct {
	docs     DocumentManager
	ingestor ingestion_engine.Ingestor
	baseCtx  context.Context // outlives the request; cancelled on shutdown
}

func NewDocumentHandler(ctx context.Context, docs DocumentManager, ing ingestion_engine.Ingestor) *DocumentHandler {
	return &DocumentHandler{
		docs:     docs,
		ingestor: ing,
		baseCtx:  ctx,
	}
}

// GetDocument returns the document row including status, outline and error.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ProcessDocument claims the document and starts processing it in the
// background, outside the scheduler's polling. It answers 409 while the
// scheduler is busy or the document is already processing.
func (h *DocumentHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ingestor.StartDocument(h.baseCtx, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": models.StatusProcessing})
}

func (h *DocumentHandler) RetryDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.docs.RetryDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": models.StatusPending})
}

func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.docs.ReprocessDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": models.StatusPending})
}
