package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig controls retry behavior for model calls.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first (default: 3)
	BaseDelay   time.Duration // Delay before the first retry (default: 500ms)
	MaxDelay    time.Duration // Cap on the backoff delay (default: 8s)
}

// DefaultRetryConfig returns sensible defaults for model calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// retryablePatterns are substrings of error messages that indicate a
// transient provider failure worth retrying. Provider SDKs wrap these
// inconsistently, so string matching is the only portable check.
var retryablePatterns = []string{
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"quota",
	"overloaded",
	"unavailable",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"EOF",
	"timeout",
	"temporarily",
	"try again",
	"internal error",
}

// isRetryable reports whether err looks like a transient failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// executeWithRetry runs fn with rate limiting and exponential backoff.
// Context errors and non-retryable failures abort immediately.
func executeWithRetry[T any](
	ctx context.Context,
	limiter *rate.Limiter,
	cfg RetryConfig,
	logger *slog.Logger,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 8 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("rate limiter: %w", err)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("attempt %d: %w", attempt, ctx.Err())
		}
		if !isRetryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.BaseDelay * (1 << (attempt - 1))
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if logger != nil {
			logger.WarnContext(ctx, "model call failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
