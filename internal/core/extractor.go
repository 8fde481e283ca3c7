package core

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_executor.go -package=mocks github.com/markdave123-py/docingest/internal/core DocumentExecutor

import (
	"context"

	"github.com/markdave123-py/docingest/internal/models"
)

// Extraction is the output of a format parser.
type Extraction struct {
	Title     string
	Outline   []models.OutlineSection
	FullText  string
	PageCount *int
	WordCount int
}

// DocumentExtractor parses a file on disk into text plus an outline.
// The mimeType hint selects the parsing strategy.
type DocumentExtractor interface {
	Extract(ctx context.Context, filePath, mimeType string) (*Extraction, error)
}

// DocumentExecutor runs extraction and chunking behind an isolation boundary.
// Implementations must enforce their own wall-clock timeout.
type DocumentExecutor interface {
	ExecuteDocumentProcessing(ctx context.Context, filePath, mimeType string) (*models.ProcessingResult, error)
}
