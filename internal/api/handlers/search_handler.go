package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/internal/services"
)

type Searcher interface {
	SearchSimilarChunks(ctx context.Context, scopeID, query string, limit int) ([]models.ChunkMatch, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{search: s}
}

type searchResponse struct {
	Query   string              `json:"query"`
	Results []models.ChunkMatch `json:"results"`
}

// Search handles GET /api/search?scope=&q=&limit=.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: limit %q is not a number", services.ErrInvalidSearch, raw))
			return
		}
		limit = n
	}

	matches, err := h.search.SearchSimilarChunks(r.Context(), q.Get("scope"), q.Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []models.ChunkMatch{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q.Get("q"), Results: matches})
}
