package extractor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
)

// Format is the closed set of document formats the pipeline can parse.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatXLSX
	FormatMarkdown
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatXLSX:
		return "xlsx"
	case FormatMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       FormatXLSX,
	"text/markdown":   FormatMarkdown,
	"text/x-markdown": FormatMarkdown,
}

var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".xlsx":     FormatXLSX,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// DetectFormat resolves the parser for a mime type. The file extension is
// only consulted when the mime type carries no information.
func DetectFormat(mimeType, filePath string) Format {
	mt, _, _ := strings.Cut(mimeType, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))

	if f, ok := mimeFormats[mt]; ok {
		return f
	}
	if mt == "" || mt == "application/octet-stream" {
		if f, ok := extFormats[strings.ToLower(filepath.Ext(filePath))]; ok {
			return f
		}
	}
	return FormatUnknown
}

var _ core.DocumentExtractor = (*Extractor)(nil)

// Extractor dispatches a file to the parser for its format and normalises the result.
type Extractor struct {
	pdfToText string
	pdfInfo   string
	logger    *slog.Logger
}

type Option func(*Extractor)

// WithPdfTools overrides the pdftotext/pdfinfo binaries. Empty values disable them.
func WithPdfTools(pdfToText, pdfInfo string) Option {
	return func(e *Extractor) {
		e.pdfToText = pdfToText
		e.pdfInfo = pdfInfo
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		pdfToText: "pdftotext",
		pdfInfo:   "pdfinfo",
		logger:    slog.Default().With("component", "extractor"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract parses filePath according to mimeType.
func (e *Extractor) Extract(ctx context.Context, filePath, mimeType string) (*core.Extraction, error) {
	if err := checkReadable(filePath); err != nil {
		return nil, err
	}

	format := DetectFormat(mimeType, filePath)

	var (
		ex  *core.Extraction
		err error
	)
	switch format {
	case FormatPDF:
		ex, err = e.extractPDF(ctx, filePath)
	case FormatDOCX:
		ex, err = extractDOCX(filePath)
	case FormatXLSX:
		ex, err = extractXLSX(filePath)
	case FormatMarkdown:
		ex, err = extractMarkdown(filePath)
	default:
		return nil, &UnsupportedFormatError{MimeType: mimeType}
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	finalize(ex, filePath)
	e.logger.DebugContext(ctx, "document extracted",
		"file", filepath.Base(filePath),
		"format", format.String(),
		"sections", len(ex.Outline),
		"words", ex.WordCount,
	)
	return ex, nil
}

func checkReadable(filePath string) error {
	f, err := os.Open(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return permanent(err, "file not found: %s", filePath)
	case errors.Is(err, fs.ErrPermission):
		return permanent(err, "permission denied: %s", filePath)
	case err != nil:
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return permanent(nil, "invalid file: %s is a directory", filePath)
	}
	return nil
}

// finalize applies the rules shared by every format: title fallback and
// truncation, outline fallback and word count.
func finalize(ex *core.Extraction, filePath string) {
	ex.Title = strings.TrimSpace(ex.Title)
	if ex.Title == "" {
		ex.Title = titleFromFilename(filePath)
	}
	ex.Title = truncateRunes(ex.Title, maxTitleRunes)

	if len(ex.Outline) == 0 {
		ex.Outline = fallbackOutline()
	}
	ex.WordCount = len(strings.Fields(ex.FullText))
}
