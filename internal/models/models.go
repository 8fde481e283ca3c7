package models

import (
	"time"
)

// Document status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document represents an uploaded file owned by the upload subsystem.
// The ingestion pipeline only writes status, outline, counts, error and timestamps.
type Document struct {
	ID              string           `db:"id" json:"id"`
	ScopeID         string           `db:"scope_id" json:"scope_id"` // owning workspace/user; search is restricted to it
	FileName        string           `db:"file_name" json:"file_name"`
	FilePath        string           `db:"file_path" json:"file_path"` // local path or s3://bucket/key
	MimeType        string           `db:"mime_type" json:"mime_type"`
	Status          string           `db:"status" json:"status"` // pending | processing | completed | failed
	ProcessingError string           `db:"processing_error" json:"processing_error,omitempty"`
	Title           string           `db:"title" json:"title"`
	Outline         []OutlineSection `db:"outline" json:"outline"`
	PageCount       *int             `db:"page_count" json:"page_count,omitempty"`
	WordCount       int              `db:"word_count" json:"word_count"`
	AutoRetryCount  int              `db:"auto_retry_count" json:"auto_retry_count"`
	UploadedAt      time.Time        `db:"uploaded_at" json:"uploaded_at"`
	ProcessedAt     *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
}

// OutlineSection is one detected structural section of a document.
// ID is derived from (lowercased title, level, position).
type OutlineSection struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Level    int    `json:"level"`
	Position int    `json:"position"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID           string    `db:"id" json:"id"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	Content      string    `db:"content" json:"content"`
	SectionID    string    `db:"section_id" json:"section_id,omitempty"`
	SectionTitle string    `db:"section_title" json:"section_title,omitempty"`
	ChunkIndex   int       `db:"chunk_index" json:"chunk_index"`
	StartChar    int       `db:"start_char" json:"start_char"`
	EndChar      int       `db:"end_char" json:"end_char"`
	Embedding    []float32 `db:"embedding" json:"embedding,omitempty"` // pgvector column
}

// ProcessingResult is what the isolation layer hands back to the scheduler.
// The full extracted text is deliberately not part of it.
type ProcessingResult struct {
	Title     string           `json:"title"`
	Outline   []OutlineSection `json:"outline"`
	PageCount *int             `json:"page_count,omitempty"`
	WordCount int              `json:"word_count"`
	Chunks    []DocumentChunk  `json:"chunks"`
}

// ChunkMatch is a similarity search hit with enough provenance to render a citation.
type ChunkMatch struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
	SectionID     string  `json:"section_id,omitempty"`
	SectionTitle  string  `json:"section_title,omitempty"`
	ChunkIndex    int     `json:"chunk_index"`
	FileName      string  `json:"filename"`
	DocumentTitle string  `json:"document_title"`
}
