package fetcher

import (
	"time"

	"github.com/probelab/deepresearch/internal/research"
)

// retryPolicy decides which outcomes are worth another attempt. Timeouts and
// network errors retry up to the configured budget with exponential backoff;
// a 5xx retries once; a 4xx never retries.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

func newRetryPolicy(maxRetries int, baseDelay time.Duration) retryPolicy {
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return retryPolicy{maxRetries: maxRetries, baseDelay: baseDelay}
}

// ShouldRetry reports whether attempt (zero-based) should be followed by
// another try given its outcome.
func (p retryPolicy) ShouldRetry(o research.FetchOutcome, attempt int) bool {
	switch o.Status {
	case research.StatusTimeout, research.StatusNetworkError:
		return attempt < p.maxRetries
	case research.StatusHTTPError:
		return o.HTTPCode >= 500 && attempt < 1
	default:
		return false
	}
}

// Backoff returns the wait before the given (zero-based) retry attempt:
// base, 2*base, 4*base, ...
func (p retryPolicy) Backoff(attempt int) time.Duration {
	d := p.baseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
