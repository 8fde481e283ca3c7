package isolation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/markdave123-py/docingest/internal/core/chunker"
	"github.com/markdave123-py/docingest/internal/core/extractor"
	"github.com/spf13/pflag"
)

// WorkerArgs is the contract between ProcessExecutor and the extract command.
type WorkerArgs struct {
	FilePath     string
	MimeType     string
	OutputPath   string
	MemoryLimit  int64
	ChunkSize    int
	ChunkOverlap int
	PdfToText    string
	PdfInfo      string
}

// BindFlags registers the worker flags on fs.
func (a *WorkerArgs) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.FilePath, "file", "", "document to parse")
	fs.StringVar(&a.MimeType, "mime", "", "mime type of the document")
	fs.StringVar(&a.OutputPath, "out", "", "file the JSON result is written to")
	fs.Int64Var(&a.MemoryLimit, "memory-limit", 0, "soft heap limit in bytes (0 = none)")
	fs.IntVar(&a.ChunkSize, "chunk-size", chunker.DefaultChunkSize, "chunk size in characters")
	fs.IntVar(&a.ChunkOverlap, "chunk-overlap", chunker.DefaultChunkOverlap, "chunk overlap in characters")
	fs.StringVar(&a.PdfToText, "pdftotext", "pdftotext", "pdftotext binary")
	fs.StringVar(&a.PdfInfo, "pdfinfo", "pdfinfo", "pdfinfo binary")
}

// ParseWorkerArgs parses flags produced by WorkerArgs.Args.
func ParseWorkerArgs(args []string) (WorkerArgs, error) {
	var a WorkerArgs
	fs := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	a.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return WorkerArgs{}, err
	}
	return a, nil
}

// Args renders a as command-line flags understood by BindFlags.
func (a WorkerArgs) Args() []string {
	return []string{
		"--file", a.FilePath,
		"--mime", a.MimeType,
		"--out", a.OutputPath,
		"--memory-limit", strconv.FormatInt(a.MemoryLimit, 10),
		"--chunk-size", strconv.Itoa(a.ChunkSize),
		"--chunk-overlap", strconv.Itoa(a.ChunkOverlap),
		"--pdftotext", a.PdfToText,
		"--pdfinfo", a.PdfInfo,
	}
}

// RunWorker is the body of the isolated child process. It parses and chunks
// the document, writes the result to OutputPath and prints one status line
// to stdout. The return value is the process exit code.
func RunWorker(ctx context.Context, args WorkerArgs, stdout io.Writer) int {
	logger := slog.Default().With("component", "isolation-worker")

	if args.MemoryLimit > 0 {
		debug.SetMemoryLimit(args.MemoryLimit)
	}
	if args.FilePath == "" || args.OutputPath == "" {
		return fail(stdout, fmt.Errorf("--file and --out are required"), false)
	}

	ext := extractor.NewExtractor(
		extractor.WithPdfTools(args.PdfToText, args.PdfInfo),
		extractor.WithLogger(logger),
	)
	res, err := NewPipeline(ext, args.ChunkSize, args.ChunkOverlap).
		ExecuteDocumentProcessing(ctx, args.FilePath, args.MimeType)
	if err != nil {
		logger.ErrorContext(ctx, "processing failed", "file", args.FilePath, "error", err)
		return fail(stdout, err, IsPermanent(err))
	}

	b, err := json.Marshal(res)
	if err != nil {
		return fail(stdout, fmt.Errorf("encode result: %w", err), false)
	}
	if err := os.WriteFile(args.OutputPath, b, 0o600); err != nil {
		return fail(stdout, fmt.Errorf("write result: %w", err), false)
	}

	logger.InfoContext(ctx, "processing finished", "file", args.FilePath, "chunks", len(res.Chunks))
	if err := writeStatus(stdout, statusLine{OK: true}); err != nil {
		return 1
	}
	return 0
}

func fail(stdout io.Writer, err error, permanent bool) int {
	_ = writeStatus(stdout, statusLine{OK: false, Error: err.Error(), Permanent: permanent})
	return 1
}
