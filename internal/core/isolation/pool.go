package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/panjf2000/ants/v2"
)

const defaultTimeout = 120 * time.Second

var _ core.DocumentExecutor = (*PoolExecutor)(nil)

// PoolExecutor runs work on a bounded ants pool with a per-call timeout.
//
// A goroutine cannot be killed, so on timeout the task's context is cancelled
// (terminating any pdftotext child) and the caller gets a timeout error
// immediately; the pool slot frees once the task observes cancellation.
// Submission never blocks: a task that ignores cancellation keeps its slot,
// and calls that find every slot held fail fast with a retryable spawn error.
type PoolExecutor struct {
	pool    *ants.Pool
	work    core.DocumentExecutor
	timeout time.Duration
	logger  *slog.Logger
}

func NewPoolExecutor(work core.DocumentExecutor, size int, timeout time.Duration, logger *slog.Logger) (*PoolExecutor, error) {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &PoolExecutor{
		pool:    pool,
		work:    work,
		timeout: timeout,
		logger:  logger.With("component", "pool-executor"),
	}, nil
}

type outcome struct {
	result *models.ProcessingResult
	err    error
}

func (e *PoolExecutor) ExecuteDocumentProcessing(ctx context.Context, filePath, mimeType string) (*models.ProcessingResult, error) {
	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	err := e.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &Error{Kind: KindWorker, Msg: fmt.Sprintf("panic: %v", r)}}
			}
		}()
		res, err := e.work.ExecuteDocumentProcessing(tctx, filePath, mimeType)
		done <- outcome{result: res, err: err}
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		e.logger.WarnContext(ctx, "worker pool full", "file", filePath, "running", e.pool.Running())
		return nil, &Error{Kind: KindSpawn, Msg: "worker pool full", Err: err}
	}
	if err != nil {
		return nil, &Error{Kind: KindSpawn, Err: err}
	}

	select {
	case o := <-done:
		if o.err != nil && tctx.Err() != nil && ctx.Err() == nil {
			return nil, e.timeoutError(ctx, filePath)
		}
		return o.result, o.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, e.timeoutError(ctx, filePath)
	}
}

func (e *PoolExecutor) timeoutError(ctx context.Context, filePath string) error {
	e.logger.WarnContext(ctx, "processing timed out", "file", filePath, "timeout", e.timeout.String())
	return &Error{Kind: KindTimeout, Msg: fmt.Sprintf("processing timed out after %s", e.timeout)}
}

// Running reports the number of busy workers.
func (e *PoolExecutor) Running() int { return e.pool.Running() }

// Close releases the pool, waiting up to the per-call timeout for running tasks.
func (e *PoolExecutor) Close() error {
	return e.pool.ReleaseTimeout(e.timeout)
}
