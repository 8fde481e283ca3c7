package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
	db "github.com/markdave123-py/docingest/internal/core/database"
	"github.com/markdave123-py/docingest/internal/core/extractor"
	"github.com/markdave123-py/docingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/docingest/internal/core/isolation"
	"github.com/markdave123-py/docingest/internal/core/llm"
	objectclient "github.com/markdave123-py/docingest/internal/core/object-client"
	"github.com/markdave123-py/docingest/internal/services"
)

// App holds the wired ingestion service.
type App struct {
	Config    *config.Config
	DBClient  *db.DatabaseClient
	Embedder  *llm.BatchEmbedder
	Scheduler *ingestion_engine.Scheduler
	Sweeper   *ingestion_engine.Sweeper
	Documents *services.DocumentService
	Search    *services.SearchService

	logger  *slog.Logger
	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger.With("component", "app")}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	a.logger.InfoContext(ctx, "database initialized and ready", "embed_dim", cfg.EmbedDim)

	provider, err := a.newEmbeddingProvider(initCtx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Embedder = llm.NewBatchEmbedder(provider, cfg.EmbedDim,
		llm.WithBatchSize(cfg.EmbedBatchSize),
		llm.WithRateLimit(cfg.EmbedRPS),
		llm.WithLogger(logger),
	)

	executor, err := a.newExecutor()
	if err != nil {
		a.Close()
		return nil, err
	}

	sources := objectclient.NewSourceFetcher(a.newObjectClient(initCtx), "")
	chunkEmbedder := ingestion_engine.NewChunkEmbedder(dbClient, a.Embedder, cfg.EmbedBatchSize, logger)

	a.Scheduler = ingestion_engine.NewScheduler(dbClient, executor,
		ingestion_engine.SchedulerConfig{
			Interval:   cfg.SchedulerInterval,
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
		},
		ingestion_engine.WithSourceResolver(sources),
		ingestion_engine.WithDocumentEmbedder(chunkEmbedder),
		ingestion_engine.WithSchedulerLogger(logger),
	)
	a.Sweeper = ingestion_engine.NewSweeper(dbClient, chunkEmbedder,
		ingestion_engine.SweeperConfig{
			Interval:       cfg.SweeperInterval,
			Window:         cfg.AutoRetryWindow,
			MaxAutoRetries: cfg.MaxAutoRetries,
			BatchSize:      cfg.AutoRetryBatch,
		},
		logger,
	)

	a.Documents = services.NewDocumentService(dbClient, logger)
	a.Search = services.NewSearchService(dbClient, a.Embedder, logger)
	return a, nil
}

func (a *App) newEmbeddingProvider(ctx context.Context) (core.EmbeddingProvider, error) {
	switch a.Config.EmbedProvider {
	case "gemini":
		g, err := llm.NewGeminiEmbedder(ctx, a.Config.AIAPIKey, a.Config.EmbedModel, a.Config.EmbedDim)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the gemini embedder: %w", err)
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	default:
		o, err := llm.NewOpenAIEmbedder(a.Config.OpenAIAPIKey, a.Config.OpenAIBaseURL, a.Config.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the openai embedder: %w", err)
		}
		return o, nil
	}
}

func (a *App) newExecutor() (core.DocumentExecutor, error) {
	cfg := a.Config
	if cfg.IsolationMode == config.IsolationProcess {
		pe, err := isolation.NewProcessExecutor(isolation.ProcessOptions{
			MemoryLimit:  cfg.WorkerMemoryLimit,
			Timeout:      cfg.ProcessTimeout,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			PdfToText:    cfg.PdfToTextPath,
			PdfInfo:      cfg.PdfInfoPath,
			Logger:       a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("process executor: %w", err)
		}
		a.logger.Info("isolation mode: child process", "timeout", cfg.ProcessTimeout.String(), "memory_limit", cfg.WorkerMemoryLimit)
		return pe, nil
	}

	ext := extractor.NewExtractor(
		extractor.WithPdfTools(cfg.PdfToTextPath, cfg.PdfInfoPath),
		extractor.WithLogger(a.logger),
	)
	pool, err := isolation.NewPoolExecutor(isolation.NewPipeline(ext, cfg.ChunkSize, cfg.ChunkOverlap),
		cfg.WorkerPoolSize, cfg.ProcessTimeout, a.logger)
	if err != nil {
		return nil, fmt.Errorf("pool executor: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.logger.Info("isolation mode: worker pool", "size", cfg.WorkerPoolSize, "timeout", cfg.ProcessTimeout.String())
	return pool, nil
}

// newObjectClient returns nil when no S3 client can be configured. s3:// paths
// then fail with a permanent error and are not retried.
func (a *App) newObjectClient(ctx context.Context) core.ObjectClient {
	s3c, err := objectclient.NewS3Client(ctx, a.Config)
	if err != nil {
		a.logger.WarnContext(ctx, "object storage disabled", "error", err)
		return nil
	}
	return s3c
}

// Run starts the scheduler, the sweeper and the HTTP server and blocks until
// ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	// on-demand runs share gctx so Scheduler.Start waits for them
	server := NewServer(gctx, a.Config, a.DBClient, a.Documents, a.Search, a.Scheduler)

	g.Go(func() error { return a.Scheduler.Start(gctx) })
	g.Go(func() error { return a.Sweeper.Start(gctx) })
	g.Go(func() error { return server.Start(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
