package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries with a linear delay: Delay*attempt after each failure.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

var DefaultRetry = RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond}

// TestRetry is used by the connection test endpoint.
var TestRetry = RetryPolicy{Attempts: 2, Delay: 750 * time.Millisecond}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithRetry runs fn until it succeeds or the attempts run out.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, name string, fn func(context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = DefaultRetry.Attempts
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			break
		}
		if attempt == attempts {
			break
		}

		wait := policy.Delay * time.Duration(attempt)
		zap.L().Warn("ai: attempt failed, retrying",
			zap.String("provider", name), zap.Int("attempt", attempt),
			zap.Duration("wait", wait), zap.Error(err))
		if err := sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}
	return zero, fmt.Errorf("[ai:%s] request failed after retries: %w", name, lastErr)
}

type retryingProvider struct {
	inner  Provider
	policy RetryPolicy
}

// WithRetries wraps p so every Complete goes through WithRetry.
func WithRetries(p Provider, policy RetryPolicy) Provider {
	return &retryingProvider{inner: p, policy: policy}
}

func (r *retryingProvider) Name() string { return r.inner.Name() }

func (r *retryingProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	return WithRetry(ctx, r.policy, r.inner.Name(), func(ctx context.Context) (*Response, error) {
		return r.inner.Complete(ctx, req)
	})
}
