package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(attempts int, waits *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		Attempts: attempts,
		Delay:    500 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			*waits = append(*waits, d)
			return nil
		},
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	var waits []time.Duration
	calls := 0
	out, err := WithRetry(context.Background(), recordingPolicy(3, &waits), "openai", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, waits)
}

func TestWithRetryExhausted(t *testing.T) {
	var waits []time.Duration
	cause := errors.New("down")
	calls := 0
	_, err := WithRetry(context.Background(), recordingPolicy(3, &waits), "gemini", func(context.Context) (int, error) {
		calls++
		return 0, cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[ai:gemini]")
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2)
}

func TestWithRetryStopsOnClientError(t *testing.T) {
	var waits []time.Duration
	calls := 0
	_, err := WithRetry(context.Background(), recordingPolicy(3, &waits), "claude", func(context.Context) (int, error) {
		calls++
		return 0, newAPIError("claude", 401, "invalid x-api-key")
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{Attempts: 3, Delay: time.Hour}
	_, err := WithRetry(ctx, policy, "openai", func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
