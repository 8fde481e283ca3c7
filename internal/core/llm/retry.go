package llm

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"
)

var retryableSignatures = []string{
	"rate limit",
	"429",
	"resource exhausted",
	"resource_exhausted",
	"resourceexhausted",
	"timeout",
	"connection reset",
	"connection refused",
	"eof",
	"temporarily unavailable",
	"503",
	"502",
}

// IsRetryableEmbeddingError reports whether err looks like throttling or a network fault.
func IsRetryableEmbeddingError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range retryableSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// RetryWithBackoff retries operation while shouldRetry accepts its error.
// The delay starts at baseDelay and doubles after every failed attempt.
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration, shouldRetry func(error) bool) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.DebugContext(ctx, "operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		slog.DebugContext(ctx, "operation failed, will retry",
			"attempt", attempt, "maxAttempts", maxAttempts, "delay", delay.String(), "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}
