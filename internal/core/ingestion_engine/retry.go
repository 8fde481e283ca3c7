package ingestion_engine

import (
	"math"
	"strings"
	"time"

	"github.com/markdave123-py/docingest/internal/core/isolation"
)

// permanentPatterns are failure messages that retrying cannot fix.
var permanentPatterns = []string{
	"not found",
	"invalid file",
	"invalid format",
	"unsupported",
	"corrupt",
	"permission denied",
}

// IsRetryableError reports whether a processing failure is worth another attempt.
// Typed permanent errors are checked first, then the message is matched
// case-insensitively; anything unrecognised is treated as transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if isolation.IsPermanent(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	return true
}

// BackoffDelay is the wait after failed attempt number attempt (1-based):
// base·2^(attempt-1)·(0.5+jitter·0.5), capped at maxDelay. jitter is in [0,1).
func BackoffDelay(attempt int, base, maxDelay time.Duration, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(2, float64(attempt-1)) * (0.5 + jitter*0.5)
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
