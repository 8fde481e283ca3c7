package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

// ErrBusy is returned when another document is already being processed by
// this scheduler. Ticks, on-demand runs and queue drains share one slot.
var ErrBusy = errors.New("scheduler busy")

// finalizeTimeout bounds the status write that records a failure, which must
// succeed even when the processing context was cancelled.
const finalizeTimeout = 30 * time.Second

// SchedulerConfig tunes polling and per-document retries.
type SchedulerConfig struct {
	Interval   time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (c *SchedulerConfig) withDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
}

var _ Ingestor = (*Scheduler)(nil)

// Scheduler drains the pending queue one document per tick, running each
// document through the executor with classified retries.
//
// store:    document state and chunk persistence.
// executor: isolation boundary around parsing and chunking.
// sources:  resolves object-storage paths to local files.
// embedder: optional post-processing step; its failures never fail the document.
type Scheduler struct {
	store    core.DocumentStore
	executor core.DocumentExecutor
	sources  SourceResolver
	embedder DocumentEmbedder
	cfg      SchedulerConfig
	logger   *slog.Logger

	slot     chan struct{} // holds one token while a document is in flight
	inflight sync.WaitGroup

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

type SchedulerOption func(*Scheduler)

func WithSourceResolver(r SourceResolver) SchedulerOption {
	return func(s *Scheduler) {
		if r != nil {
			s.sources = r
		}
	}
}

func WithDocumentEmbedder(e DocumentEmbedder) SchedulerOption {
	return func(s *Scheduler) { s.embedder = e }
}

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewScheduler(store core.DocumentStore, executor core.DocumentExecutor, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	cfg.withDefaults()
	s := &Scheduler{
		store:    store,
		executor: executor,
		sources:  localSources{},
		cfg:      cfg,
		slot:     make(chan struct{}, 1),
		logger:   slog.Default(),
		sleep:    sleepContext,
		jitter:   rand.Float64,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Start polls every Interval until ctx is cancelled, then waits for the
// in-flight document to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduler started", "interval", s.cfg.Interval.String())
	for {
		select {
		case <-ctx.Done():
			// Holding the slot keeps late on-demand runs from starting
			// while we wait.
			s.slot <- struct{}{}
			s.inflight.Wait()
			s.release()
			s.logger.InfoContext(ctx, "scheduler stopped")
			return nil
		case <-ticker.C:
			if !s.acquire() {
				continue
			}
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				defer s.release()
				if _, err := s.processNext(ctx); err != nil {
					s.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
				}
			}()
		}
	}
}

func (s *Scheduler) acquire() bool {
	select {
	case s.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) release() { <-s.slot }

// Tick processes at most one pending document. It returns ErrBusy while
// another document is in flight.
func (s *Scheduler) Tick(ctx context.Context) error {
	_, err := s.ProcessNextPendingDocument(ctx)
	return err
}

// ProcessNextPendingDocument claims the oldest pending document and processes it.
// It reports whether a document was found.
func (s *Scheduler) ProcessNextPendingDocument(ctx context.Context) (bool, error) {
	if !s.acquire() {
		return false, ErrBusy
	}
	defer s.release()
	return s.processNext(ctx)
}

func (s *Scheduler) processNext(ctx context.Context) (bool, error) {
	doc, err := s.store.ClaimNextPendingDocument(ctx)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim pending document: %w", err)
	}
	return true, s.process(ctx, doc)
}

// ProcessDocumentByID processes one document from any status except
// processing, blocking until it completes or fails.
func (s *Scheduler) ProcessDocumentByID(ctx context.Context, id string) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()

	doc, err := s.claimByID(ctx, id)
	if err != nil {
		return err
	}
	return s.process(ctx, doc)
}

// StartDocument claims a document like ProcessDocumentByID but processes it in
// the background. Errors from the claim are returned; processing errors are
// logged. Start waits for the background run on shutdown.
func (s *Scheduler) StartDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.acquire() {
		return ErrBusy
	}

	doc, err := s.claimByID(ctx, id)
	if err != nil {
		s.release()
		return err
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.release()
		if err := s.process(ctx, doc); err != nil {
			s.logger.ErrorContext(ctx, "on-demand processing failed", "document_id", id, "error", err)
		}
	}()
	return nil
}

func (s *Scheduler) claimByID(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if doc.Status == models.StatusProcessing {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrDocumentProcessing)
	}
	if err := s.store.MarkDocumentProcessing(ctx, id); err != nil {
		return nil, fmt.Errorf("mark document %s processing: %w", id, err)
	}
	doc.Status = models.StatusProcessing
	return doc, nil
}

func (s *Scheduler) process(ctx context.Context, doc *models.Document) error {
	log := s.logger.With("document_id", doc.ID, "file", doc.FileName)
	start := time.Now()
	log.InfoContext(ctx, "processing document", "mime_type", doc.MimeType)

	result, err := s.executeWithRetry(ctx, doc, log)
	if err != nil {
		s.fail(ctx, doc.ID, err, log)
		return fmt.Errorf("process document %s: %w", doc.ID, err)
	}

	if err := s.store.CompleteDocument(ctx, doc.ID, result); err != nil {
		err = fmt.Errorf("persist result: %w", err)
		s.fail(ctx, doc.ID, err, log)
		return fmt.Errorf("process document %s: %w", doc.ID, err)
	}
	log.InfoContext(ctx, "document completed",
		"chunks", len(result.Chunks),
		"sections", len(result.Outline),
		"words", result.WordCount,
		"duration", time.Since(start).String(),
	)

	if s.embedder != nil {
		n, err := s.embedder.EmbedDocumentChunks(ctx, doc.ID)
		if err != nil {
			log.ErrorContext(ctx, "embedding failed, document left completed", "error", err)
		} else {
			log.InfoContext(ctx, "chunks embedded", "count", n)
		}
	}
	return nil
}

func (s *Scheduler) fail(ctx context.Context, id string, cause error, log *slog.Logger) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := s.store.FailDocument(wctx, id, cause.Error()); err != nil {
		log.ErrorContext(ctx, "failed to record document failure", "error", err, "cause", cause)
		return
	}
	log.ErrorContext(ctx, "document failed", "error", cause)
}

func (s *Scheduler) executeWithRetry(ctx context.Context, doc *models.Document, log *slog.Logger) (*models.ProcessingResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		result, err := s.attempt(ctx, doc)
		if err == nil {
			if attempt > 1 {
				log.InfoContext(ctx, "processing succeeded after retry", "attempt", attempt)
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if !IsRetryableError(err) {
			log.WarnContext(ctx, "permanent processing error, not retrying", "attempt", attempt, "error", err)
			return nil, err
		}
		if attempt == s.cfg.MaxRetries {
			break
		}

		delay := BackoffDelay(attempt, s.cfg.BaseDelay, s.cfg.MaxDelay, s.jitter())
		log.WarnContext(ctx, "processing failed, will retry",
			"attempt", attempt, "max_attempts", s.cfg.MaxRetries, "delay", delay.String(), "error", err)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
	}

	log.ErrorContext(ctx, "processing retries exhausted", "attempts", s.cfg.MaxRetries)
	return nil, lastErr
}

func (s *Scheduler) attempt(ctx context.Context, doc *models.Document) (*models.ProcessingResult, error) {
	path, release, err := s.sources.Localize(ctx, doc.FilePath)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.executor.ExecuteDocumentProcessing(ctx, path, doc.MimeType)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
