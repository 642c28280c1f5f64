package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 6; attempt++ {
		d := CalculateBackoff(base, attempt, max)
		// Never below the exponential floor, never above cap + 25% jitter.
		floor := base * time.Duration(1<<uint(attempt))
		if floor > max {
			floor = max
		}
		assert.GreaterOrEqual(t, d, floor)
		assert.LessOrEqual(t, d, max+max/4)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("http 429: slow down"), true},
		{"server error", errors.New("500 internal"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"bad request", errors.New("400 invalid argument"), false},
		{"auth", errors.New("401 unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	p := retryPolicy{maxRetries: 3, retryDelay: time.Millisecond, maxDelay: 10 * time.Millisecond}

	calls := 0
	_, err := p.withRetry(context.Background(), "test", func() (*Response, error) {
		calls++
		return nil, errors.New("400 invalid argument")
	})

	require.Error(t, err)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "test", provErr.Backend)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsRetryableError(t *testing.T) {
	p := retryPolicy{maxRetries: 2, retryDelay: time.Millisecond, maxDelay: 4 * time.Millisecond}

	calls := 0
	_, err := p.withRetry(context.Background(), "test", func() (*Response, error) {
		calls++
		return nil, errors.New("503 unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetrySucceedsAfterFailure(t *testing.T) {
	p := retryPolicy{maxRetries: 2, retryDelay: time.Millisecond, maxDelay: 4 * time.Millisecond}

	calls := 0
	resp, err := p.withRetry(context.Background(), "test", func() (*Response, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("429 rate limited")
		}
		return &Response{Text: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, calls)
}
