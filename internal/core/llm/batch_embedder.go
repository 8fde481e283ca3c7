package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/docingest/internal/core"
)

const (
	// MaxBatchSize is the most inputs sent to the provider in one call.
	MaxBatchSize = 100

	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

var _ core.EmbeddingProvider = (*BatchEmbedder)(nil)

// BatchEmbedder splits inputs into provider-sized batches, paces and retries
// each call, and enforces a fixed vector dimension.
type BatchEmbedder struct {
	provider    core.EmbeddingProvider
	dim         int
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

type BatchOption func(*BatchEmbedder)

// WithBatchSize caps inputs per call. Values outside 1..MaxBatchSize are clamped.
func WithBatchSize(n int) BatchOption {
	return func(b *BatchEmbedder) {
		b.batchSize = min(max(n, 1), MaxBatchSize)
	}
}

// WithRateLimit paces provider calls. rps <= 0 disables pacing.
func WithRateLimit(rps float64) BatchOption {
	return func(b *BatchEmbedder) {
		if rps <= 0 {
			b.limiter = nil
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithRetry(maxAttempts int, baseDelay time.Duration) BatchOption {
	return func(b *BatchEmbedder) {
		b.maxAttempts = maxAttempts
		b.baseDelay = baseDelay
	}
}

func WithLogger(l *slog.Logger) BatchOption {
	return func(b *BatchEmbedder) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBatchEmbedder(provider core.EmbeddingProvider, dim int, opts ...BatchOption) *BatchEmbedder {
	b := &BatchEmbedder{
		provider:    provider,
		dim:         dim,
		batchSize:   MaxBatchSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	b.logger = b.logger.With("component", "batch-embedder")
	return b
}

// Dimension is the vector size every result is checked against.
func (b *BatchEmbedder) Dimension() int { return b.dim }

func (b *BatchEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings returns one vector per input, in input order.
func (b *BatchEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		vecs, err := b.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return b.GenerateEmbeddings(ctx, texts)
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	err := RetryWithBackoff(ctx, func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		vecs, err = b.provider.EmbedTexts(ctx, batch)
		return err
	}, b.maxAttempts, b.baseDelay, IsRetryableEmbeddingError)
	if err != nil {
		b.logger.ErrorContext(ctx, "embedding batch failed", "size", len(batch), "error", err)
		return nil, &EmbeddingError{Op: "request", BatchSize: len(batch), Err: err}
	}

	if len(vecs) != len(batch) {
		return nil, &EmbeddingError{
			Op:        "response",
			BatchSize: len(batch),
			Err:       fmt.Errorf("got %d vectors for %d inputs", len(vecs), len(batch)),
		}
	}
	for i, v := range vecs {
		if len(v) != b.dim {
			return nil, fmt.Errorf("%w: input %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), b.dim)
		}
	}
	return vecs, nil
}

// CheckDimension embeds a short string to verify the provider answers with the configured dimension.
func (b *BatchEmbedder) CheckDimension(ctx context.Context) error {
	_, err := b.GenerateEmbedding(ctx, "dimension check")
	return err
}
