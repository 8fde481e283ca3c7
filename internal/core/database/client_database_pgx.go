package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// buildDSN appends verify-ca SSL parameters when a root certificate is configured.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Documents

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

// ClaimNextPendingDocument takes the oldest pending row under SKIP LOCKED so
// concurrent schedulers never claim the same document.
func (c *DatabaseClient) ClaimNextPendingDocument(ctx context.Context) (*models.Document, error) {
	q := `
		UPDATE documents
		SET status = 'processing', processing_error = NULL, updated_at = now()
		WHERE id = (
			SELECT id FROM documents
			WHERE status = 'pending'
			ORDER BY uploaded_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + documentColumns
	return scanDocument(c.db.QueryRowContext(ctx, q))
}

func (c *DatabaseClient) MarkDocumentProcessing(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET status = 'processing', processing_error = NULL, updated_at = now()
		WHERE id = $1 AND status <> 'processing'
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := c.GetDocumentByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("document %s: %w", id, core.ErrDocumentProcessing)
}

// CompleteDocument replaces the chunk set and records the extraction metadata atomically.
func (c *DatabaseClient) CompleteDocument(ctx context.Context, id string, result *models.ProcessingResult) error {
	if result == nil {
		return fmt.Errorf("nil processing result for %s", id)
	}
	outline, err := json.Marshal(result.Outline)
	if err != nil {
		return fmt.Errorf("encode outline: %w", err)
	}

	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if err := insertChunks(ctx, tx, id, result.Chunks); err != nil {
			return err
		}

		const q = `
			UPDATE documents
			SET title = $2, outline = $3, page_count = $4, word_count = $5,
			    status = 'completed', processing_error = NULL,
			    processed_at = now(), updated_at = now()
			WHERE id = $1
		`
		var pageCount any
		if result.PageCount != nil {
			pageCount = *result.PageCount
		}
		res, err := tx.ExecContext(ctx, q, id, result.Title, string(outline), pageCount, result.WordCount)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return expectOneRow(res, id)
	})
}

// insertChunks inserts chunks in a single prepared statement.
func insertChunks(ctx context.Context, tx *sql.Tx, documentID string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, content, section_id, section_title, chunk_index, start_char, end_char, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.DocumentID = documentID

		var vec any
		if len(ch.Embedding) > 0 {
			vec = pgvector.NewVector(ch.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, documentID, ch.Content, nullIfEmpty(ch.SectionID), nullIfEmpty(ch.SectionTitle),
			ch.ChunkIndex, ch.StartChar, ch.EndChar, vec,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
		}
	}
	return nil
}

func (c *DatabaseClient) FailDocument(ctx context.Context, id string, processingError string) error {
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		const q = `
			UPDATE documents
			SET status = 'failed', processing_error = $2, updated_at = now()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, q, id, processingError)
		if err != nil {
			return err
		}
		return expectOneRow(res, id)
	})
}

func (c *DatabaseClient) ListAutoRetryCandidates(ctx context.Context, uploadedSince time.Time, maxAutoRetries, limit int) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents
		WHERE status = 'failed' AND uploaded_at > $1 AND auto_retry_count < $2
		ORDER BY uploaded_at ASC
		LIMIT $3`
	rows, err := c.db.QueryContext(ctx, q, uploadedSince, maxAutoRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ResetDocumentForRetry(ctx context.Context, id string, countAutoRetry bool) error {
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		const q = `
			UPDATE documents
			SET status = 'pending', processing_error = NULL, processed_at = NULL,
			    auto_retry_count = auto_retry_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			    updated_at = now()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, q, id, countAutoRetry)
		if err != nil {
			return err
		}
		return expectOneRow(res, id)
	})
}

// Chunks

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, content, section_id, section_title, chunk_index, start_char, end_char, embedding
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch           models.DocumentChunk
			sectionID    sql.NullString
			sectionTitle sql.NullString
			emb          *pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Content, &sectionID, &sectionTitle,
			&ch.ChunkIndex, &ch.StartChar, &ch.EndChar, &emb,
		); err != nil {
			return nil, err
		}
		ch.SectionID = sectionID.String
		ch.SectionTitle = sectionTitle.String
		if emb != nil {
			ch.Embedding = emb.Slice()
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	const q = `UPDATE document_chunks SET embedding = $2 WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, chunkID, pgvector.NewVector(embedding))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chunk %s: %w", chunkID, core.ErrNotFound)
	}
	return nil
}

// ListDocumentsMissingEmbeddings returns completed documents that still have chunks without vectors.
func (c *DatabaseClient) ListDocumentsMissingEmbeddings(ctx context.Context, limit int) ([]string, error) {
	const q = `
		SELECT d.id
		FROM documents d
		WHERE d.status = 'completed'
		  AND EXISTS (
			SELECT 1 FROM document_chunks c
			WHERE c.document_id = d.id AND c.embedding IS NULL
		  )
		ORDER BY d.processed_at ASC NULLS LAST
		LIMIT $1
	`
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SearchChunks finds the chunks nearest to queryVec by cosine distance, limited
// to completed documents in scopeID. Similarity is 1 - distance, unclamped.
func (c *DatabaseClient) SearchChunks(ctx context.Context, scopeID string, queryVec []float32, limit int) ([]models.ChunkMatch, error) {
	const q = `
		SELECT c.id, c.document_id, c.content, c.section_id, c.section_title, c.chunk_index,
		       d.file_name, COALESCE(d.title, ''), c.embedding <=> $2 AS distance
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.scope_id = $1 AND d.status = 'completed' AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $2
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, scopeID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChunkMatch
	for rows.Next() {
		var (
			m            models.ChunkMatch
			sectionID    sql.NullString
			sectionTitle sql.NullString
			distance     float64
		)
		if err := rows.Scan(
			&m.ChunkID, &m.DocumentID, &m.Content, &sectionID, &sectionTitle, &m.ChunkIndex,
			&m.FileName, &m.DocumentTitle, &distance,
		); err != nil {
			return nil, err
		}
		m.SectionID = sectionID.String
		m.SectionTitle = sectionTitle.String
		m.Similarity = 1 - distance
		out = append(out, m)
	}
	return out, rows.Err()
}
