package isolation

import (
	"context"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/chunker"
	"github.com/markdave123-py/docingest/internal/models"
)

var _ core.DocumentExecutor = (*Pipeline)(nil)

// Pipeline is the unit of work both executors isolate: parse, then chunk.
// It runs in the calling goroutine with no limits of its own.
type Pipeline struct {
	extractor    core.DocumentExtractor
	chunkSize    int
	chunkOverlap int
}

func NewPipeline(ext core.DocumentExtractor, chunkSize, chunkOverlap int) *Pipeline {
	return &Pipeline{extractor: ext, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func (p *Pipeline) ExecuteDocumentProcessing(ctx context.Context, filePath, mimeType string) (*models.ProcessingResult, error) {
	ex, err := p.extractor.Extract(ctx, filePath, mimeType)
	if err != nil {
		return nil, err
	}

	chunks := chunker.ChunkDocumentBySection(ex, p.chunkSize, p.chunkOverlap)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.ProcessingResult{
		Title:     ex.Title,
		Outline:   ex.Outline,
		PageCount: ex.PageCount,
		WordCount: ex.WordCount,
		Chunks:    chunks,
	}, nil
}
