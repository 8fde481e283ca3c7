package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const documentColumns = `
	id, scope_id, file_name, file_path, mime_type, status, processing_error, title,
	outline, page_count, word_count, auto_retry_count, uploaded_at, processed_at`

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		d         models.Document
		procErr   sql.NullString
		title     sql.NullString
		outline   []byte
		pageCount sql.NullInt32
		processed sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.ScopeID, &d.FileName, &d.FilePath, &d.MimeType, &d.Status, &procErr, &title,
		&outline, &pageCount, &d.WordCount, &d.AutoRetryCount, &d.UploadedAt, &processed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	d.ProcessingError = procErr.String
	d.Title = title.String
	if len(outline) > 0 {
		if err := json.Unmarshal(outline, &d.Outline); err != nil {
			return nil, fmt.Errorf("decode outline for %s: %w", d.ID, err)
		}
	}
	if pageCount.Valid {
		n := int(pageCount.Int32)
		d.PageCount = &n
	}
	if processed.Valid {
		t := processed.Time
		d.ProcessedAt = &t
	}
	return &d, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}
