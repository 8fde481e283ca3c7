package isolation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

const (
	statusLimit = 64 << 10
	waitDelay   = 5 * time.Second
)

// ProcessOptions configures a ProcessExecutor. Zero values pick defaults.
type ProcessOptions struct {
	Binary       string   // defaults to the running executable
	Command      []string // arguments placed before the worker flags, defaults to ["extract"]
	Env          []string // extra environment for the child
	TempDir      string   // where result files are created, defaults to os.TempDir()
	MemoryLimit  int64
	Timeout      time.Duration
	ChunkSize    int
	ChunkOverlap int
	PdfToText    string
	PdfInfo      string
	Logger       *slog.Logger
}

var _ core.DocumentExecutor = (*ProcessExecutor)(nil)

// ProcessExecutor runs each document in a fresh child process with a heap cap
// and a hard wall-clock timeout. The child reports a one-line JSON status on
// stdout and hands the result over in a temp file.
type ProcessExecutor struct {
	opts   ProcessOptions
	logger *slog.Logger
}

func NewProcessExecutor(opts ProcessOptions) (*ProcessExecutor, error) {
	if opts.Binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		opts.Binary = exe
	}
	if opts.Command == nil {
		opts.Command = []string{"extract"}
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ProcessExecutor{opts: opts, logger: opts.Logger.With("component", "process-executor")}, nil
}

func (e *ProcessExecutor) ExecuteDocumentProcessing(ctx context.Context, filePath, mimeType string) (*models.ProcessingResult, error) {
	out, err := newTempOutput(e.opts.TempDir)
	if err != nil {
		return nil, &Error{Kind: KindTempFile, Msg: "create result file", Err: err}
	}
	defer out.Close()

	tctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	wa := WorkerArgs{
		FilePath:     filePath,
		MimeType:     mimeType,
		OutputPath:   out.Path(),
		MemoryLimit:  e.opts.MemoryLimit,
		ChunkSize:    e.opts.ChunkSize,
		ChunkOverlap: e.opts.ChunkOverlap,
		PdfToText:    e.opts.PdfToText,
		PdfInfo:      e.opts.PdfInfo,
	}
	args := append(append([]string{}, e.opts.Command...), wa.Args()...)

	stdout := &cappedBuffer{limit: statusLimit}
	stderr := newLogWriter(ctx, e.logger)

	cmd := exec.CommandContext(tctx, e.opts.Binary, args...)
	cmd.Env = append(os.Environ(), e.opts.Env...)
	if e.opts.MemoryLimit > 0 {
		cmd.Env = append(cmd.Env, "GOMEMLIMIT="+strconv.FormatInt(e.opts.MemoryLimit, 10))
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: KindSpawn, Err: err}
	}
	waitErr := cmd.Wait()
	stderr.Flush()

	if tctx.Err() != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.logger.WarnContext(ctx, "worker killed after timeout",
			"file", filePath, "pid", cmd.Process.Pid, "timeout", e.opts.Timeout.String())
		return nil, &Error{Kind: KindTimeout, Msg: fmt.Sprintf("processing timed out after %s", e.opts.Timeout)}
	}

	status, perr := parseStatus(stdout.Bytes())
	if perr != nil {
		if waitErr != nil {
			return nil, &Error{Kind: KindExit, Msg: stderr.Tail(), Err: waitErr}
		}
		return nil, &Error{Kind: KindStatus, Err: perr}
	}
	if !status.OK {
		return nil, &Error{Kind: KindWorker, Msg: status.Error, Permanent: status.Permanent}
	}
	if waitErr != nil {
		return nil, &Error{Kind: KindExit, Err: waitErr}
	}

	res, err := out.Read()
	if err != nil {
		return nil, &Error{Kind: KindTempFile, Msg: "read result", Err: err}
	}

	e.logger.DebugContext(ctx, "worker finished",
		"file", filePath, "chunks", len(res.Chunks), "duration", time.Since(start).String())
	return res, nil
}

// tempOutput is a uniquely named result file owned by one execution.
// Close removes it and is safe to call on every exit path.
type tempOutput struct {
	path string
}

func newTempOutput(dir string) (*tempOutput, error) {
	f, err := os.CreateTemp(dir, fmt.Sprintf("docproc-%d-*.json", time.Now().UnixNano()))
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &tempOutput{path: f.Name()}, nil
}

func (t *tempOutput) Path() string { return t.path }

func (t *tempOutput) Read() (*models.ProcessingResult, error) {
	b, err := os.ReadFile(t.path)
	if err != nil {
		return nil, err
	}
	var res models.ProcessingResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

func (t *tempOutput) Close() error {
	if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// logWriter forwards the child's stderr to the parent logger line by line
// and remembers the last line for error reports.
type logWriter struct {
	ctx    context.Context
	logger *slog.Logger

	mu   sync.Mutex
	buf  bytes.Buffer
	last string
}

func newLogWriter(ctx context.Context, logger *slog.Logger) *logWriter {
	return &logWriter{ctx: ctx, logger: logger}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

func (w *logWriter) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	w.last = line
	w.logger.DebugContext(w.ctx, "worker output", "line", line)
}

func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	sc := bufio.NewScanner(&w.buf)
	for sc.Scan() {
		w.emit(sc.Text())
	}
	w.buf.Reset()
}

func (w *logWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
