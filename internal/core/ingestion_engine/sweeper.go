package ingestion_engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
)

// SweeperConfig bounds automatic retries of failed documents.
type SweeperConfig struct {
	Interval       time.Duration
	Window         time.Duration // only documents uploaded within this window are retried
	MaxAutoRetries int
	BatchSize      int
	BackfillLimit  int // documents per sweep whose missing embeddings are filled in
}

func (c *SweeperConfig) withDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	if c.MaxAutoRetries < 0 {
		c.MaxAutoRetries = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BackfillLimit <= 0 {
		c.BackfillLimit = 5
	}
}

// Backfiller embeds chunks left without vectors.
type Backfiller interface {
	Backfill(ctx context.Context, limit int) (int, error)
}

// Sweeper periodically resets recent failures to pending so the scheduler
// picks them up again, and backfills missing embeddings.
type Sweeper struct {
	store    core.DocumentStore
	backfill Backfiller
	cfg      SweeperConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewSweeper accepts a nil backfill to disable embedding backfill.
func NewSweeper(store core.DocumentStore, backfill Backfiller, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		backfill: backfill,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With("component", "sweeper"),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started",
		"interval", s.cfg.Interval.String(), "max_auto_retries", s.cfg.MaxAutoRetries)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep resets eligible failed documents and returns how many were reset.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	since := s.now().Add(-s.cfg.Window)
	docs, err := s.store.ListAutoRetryCandidates(ctx, since, s.cfg.MaxAutoRetries, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, d := range docs {
		if d.AutoRetryCount >= s.cfg.MaxAutoRetries || !d.UploadedAt.After(since) {
			continue
		}
		if err := s.store.ResetDocumentForRetry(ctx, d.ID, true); err != nil {
			s.logger.ErrorContext(ctx, "auto-retry reset failed", "document_id", d.ID, "error", err)
			continue
		}
		reset++
		s.logger.InfoContext(ctx, "document queued for auto-retry",
			"document_id", d.ID,
			"attempt", d.AutoRetryCount+1,
			"max_auto_retries", s.cfg.MaxAutoRetries,
			"previous_error", d.ProcessingError,
		)
	}

	if s.backfill != nil {
		n, err := s.backfill.Backfill(ctx, s.cfg.BackfillLimit)
		if err != nil {
			s.logger.ErrorContext(ctx, "embedding backfill incomplete", "error", err)
		} else if n > 0 {
			s.logger.InfoContext(ctx, "embedding backfill finished", "documents", n)
		}
	}
	return reset, nil
}
