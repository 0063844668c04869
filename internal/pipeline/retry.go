package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"claimease/internal/domain"
)

// RetryPolicy bounds how transient stage failures are retried.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// JitterFraction randomizes each wait by up to +/- this fraction.
	JitterFraction float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Backoff returns the un-jittered wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return backoff
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.JitterFraction <= 0 {
		return d
	}
	jitter := time.Duration(float64(d) * p.JitterFraction * (rand.Float64()*2 - 1))
	if d+jitter < 0 {
		return d
	}
	return d + jitter
}

// ExhaustedError reports a transient failure that outlived the retry bound.
// It matches domain.ErrTransientExhausted.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("transient failure persisted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool {
	return target == domain.ErrTransientExhausted
}

// Do runs op until it succeeds, fails with a non-transient error, exhausts
// MaxAttempts, or ctx is done. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, lastErr
		}
		if domain.KindOf(lastErr) != domain.ErrorKindTransient {
			return attempt, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		wait := p.jittered(p.Backoff(attempt))
		if onRetry != nil {
			onRetry(attempt, lastErr, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, lastErr
		case <-timer.C:
		}
	}
	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}
