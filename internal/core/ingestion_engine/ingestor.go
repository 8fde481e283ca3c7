package ingestion_engine

import "context"

// Ingestor is the processing surface used by the HTTP handlers and the CLI.
type Ingestor interface {
	ProcessDocumentByID(ctx context.Context, id string) error
	StartDocument(ctx context.Context, id string) error
	ProcessNextPendingDocument(ctx context.Context) (bool, error)
}

// DocumentEmbedder embeds the stored chunks of one document.
type DocumentEmbedder interface {
	EmbedDocumentChunks(ctx context.Context, documentID string) (int, error)
}

// SourceResolver makes a document's file path readable from the local filesystem.
// release must be called once the file is no longer needed.
type SourceResolver interface {
	Localize(ctx context.Context, filePath string) (path string, release func(), err error)
}

type localSources struct{}

func (localSources) Localize(_ context.Context, filePath string) (string, func(), error) {
	return filePath, func() {}, nil
}
