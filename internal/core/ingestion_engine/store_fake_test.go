package ingestion_engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

// memStore is an in-memory DocumentStore and ChunkStore.
type memStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	chunks map[string][]models.DocumentChunk

	failCalls     int
	completeCalls int
	updateErr     error
}

var (
	_ core.DocumentStore = (*memStore)(nil)
	_ core.ChunkStore    = (*memStore)(nil)
)

func newMemStore(docs ...models.Document) *memStore {
	s := &memStore{docs: map[string]*models.Document{}, chunks: map[string][]models.DocumentChunk{}}
	for i := range docs {
		d := docs[i]
		if d.Status == "" {
			d.Status = models.StatusPending
		}
		s.docs[d.ID] = &d
	}
	return s
}

func (s *memStore) doc(id string) models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.docs[id]
}

func (s *memStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ClaimNextPendingDocument(_ context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*models.Document
	for _, d := range s.docs {
		if d.Status == models.StatusPending {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return nil, core.ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].UploadedAt.Before(pending[j].UploadedAt) })
	pending[0].Status = models.StatusProcessing
	cp := *pending[0]
	return &cp, nil
}

func (s *memStore) MarkDocumentProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	if d.Status == models.StatusProcessing {
		return core.ErrDocumentProcessing
	}
	d.Status = models.StatusProcessing
	return nil
}

func (s *memStore) CompleteDocument(_ context.Context, id string, r *models.ProcessingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	d, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	chunks := make([]models.DocumentChunk, len(r.Chunks))
	for i, c := range r.Chunks {
		c.ID = fmt.Sprintf("%s-c%d", id, i)
		c.DocumentID = id
		chunks[i] = c
	}
	s.chunks[id] = chunks
	now := time.Now()
	d.Status = models.StatusCompleted
	d.Title = r.Title
	d.Outline = r.Outline
	d.WordCount = r.WordCount
	d.PageCount = r.PageCount
	d.ProcessingError = ""
	d.ProcessedAt = &now
	return nil
}

func (s *memStore) FailDocument(_ context.Context, id string, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCalls++
	d, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.chunks, id)
	d.Status = models.StatusFailed
	d.ProcessingError = msg
	return nil
}

func (s *memStore) ListAutoRetryCandidates(_ context.Context, since time.Time, maxAutoRetries, limit int) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, d := range s.docs {
		if d.Status == models.StatusFailed && d.UploadedAt.After(since) && d.AutoRetryCount < maxAutoRetries {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ResetDocumentForRetry(_ context.Context, id string, countAutoRetry bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.chunks, id)
	d.Status = models.StatusPending
	d.ProcessingError = ""
	if countAutoRetry {
		d.AutoRetryCount++
	}
	return nil
}

func (s *memStore) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DocumentChunk(nil), s.chunks[documentID]...), nil
}

func (s *memStore) UpdateChunkEmbedding(_ context.Context, chunkID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for docID, cs := range s.chunks {
		for i := range cs {
			if cs[i].ID == chunkID {
				s.chunks[docID][i].Embedding = embedding
				return nil
			}
		}
	}
	return core.ErrNotFound
}

func (s *memStore) ListDocumentsMissingEmbeddings(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, cs := range s.chunks {
		for _, c := range cs {
			if len(c.Embedding) == 0 {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) SearchChunks(context.Context, string, []float32, int) ([]models.ChunkMatch, error) {
	return nil, nil
}
