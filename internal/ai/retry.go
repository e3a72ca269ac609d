package ai

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"docai-platform/internal/logger"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// RetryOptions controls withRetry behavior. Zero values pick the defaults.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Retryable  func(error) bool
}

// isRetryable classifies transient provider errors: rate limits, timeouts,
// and upstream 5xx responses.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "429",
		"timeout", "timed out", "deadline exceeded",
		"500", "502", "503",
		"connection reset", "connection refused",
		"unavailable", "internal",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// withRetry runs fn with exponential backoff and jitter. Non-retryable
// errors and context cancellation abort immediately.
func withRetry[T any](ctx context.Context, fn func() (T, error), opts RetryOptions) (T, error) {
	var zero T

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := opts.BaseDelay
	if baseDelay == 0 {
		baseDelay = defaultBaseDelay
	}
	maxDelay := opts.MaxDelay
	if maxDelay == 0 {
		maxDelay = defaultMaxDelay
	}
	retryable := opts.Retryable
	if retryable == nil {
		retryable = isRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxRetries || !retryable(err) {
			return zero, err
		}

		jitter := rand.Float64()*0.3 + 0.85
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)) * jitter)
		if delay > maxDelay {
			delay = maxDelay
		}

		logger.Warn("retrying after error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"delay_ms", delay.Milliseconds(), "error", err.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
