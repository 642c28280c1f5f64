package client

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"koda/internal/logging"
)

// retryPolicy holds the retry parameters shared by both backends.
type retryPolicy struct {
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries: 3,
		retryDelay: time.Second,
		maxDelay:   30 * time.Second,
	}
}

// CalculateBackoff calculates exponential backoff with jitter.
// Jitter prevents synchronized retries across concurrent sessions.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}

	// Random value between 0 and 25% of delay.
	jitter := time.Duration(rand.Int63n(int64(delay / 4)))
	return delay + jitter
}

// withRetry runs fn up to maxRetries+1 times, backing off between
// retryable failures. Non-retryable errors return immediately.
func (p retryPolicy) withRetry(ctx context.Context, backend string, fn func() (*Response, error)) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(p.retryDelay, attempt-1, p.maxDelay)
			logging.Info("retrying provider request", "backend", backend, "attempt", attempt, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return nil, &ProviderError{Backend: backend, Err: err}
		}

		logging.Warn("provider request failed, will retry", "backend", backend, "attempt", attempt, "error", err)
	}

	return nil, &ProviderError{Backend: backend, Err: lastErr}
}

// isRetryableError returns true if the error should trigger a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// 429 = rate limit, 5xx = server errors.
	retryableCodes := []string{"429", "500", "502", "503", "504"}
	for _, code := range retryableCodes {
		if strings.Contains(errStr, code) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"temporary failure",
		"UNAVAILABLE",
		"RESOURCE_EXHAUSTED",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(pattern)) {
			return true
		}
	}

	return false
}
