// Package retry wraps remote operations with the club core's backoff policy.
// It is the single place transient-failure resilience lives: callers hand in
// one attempt as a closure and get back either its result or the last
// classified failure. Nothing else in the codebase loops on errors.
package retry

import (
	"context"
	"time"

	"github.com/Chirag4452/sportsclub-core/internal/faults"
)

// Policy defaults. Delays double per attempt and never exceed the cap.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// SleepFunc sleeps for d or returns early with the context error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier re-runs operations that fail with retryable classifications.
type Retrier struct {
	classifier *faults.Classifier
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      SleepFunc
}

// Option adjusts a Retrier.
type Option func(*Retrier)

// WithMaxRetries overrides the retry ceiling (attempts = maxRetries+1).
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBaseDelay overrides the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.baseDelay = d
		}
	}
}

// WithMaxDelay overrides the backoff cap.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

// WithSleep replaces the sleep implementation, for tests.
func WithSleep(fn SleepFunc) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// New constructs a Retrier with the default policy.
func New(classifier *faults.Classifier, opts ...Option) *Retrier {
	r := &Retrier{
		classifier: classifier,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs an error-only operation under the retry policy.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	_, err := Do(ctx, r, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do runs fn until it succeeds, fails non-retryably, or exhausts the ceiling.
// A non-retryable classification propagates immediately; exhaustion returns
// the last classification tagged as the final attempt.
func Do[T any](ctx context.Context, r *Retrier, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var last *faults.ClassifiedError

	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		attemptsCounter.WithLabelValues(operation).Inc()

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		last = r.classifier.Classify(err, operation, map[string]any{"attempt": attempt})
		if !last.Retryable {
			return zero, last
		}
		if attempt == r.maxRetries+1 {
			break
		}
		if sleepErr := r.sleep(ctx, r.backoffDelay(attempt)); sleepErr != nil {
			return zero, r.classifier.Classify(sleepErr, operation, map[string]any{"attempt": attempt})
		}
	}

	exhaustedCounter.WithLabelValues(operation).Inc()
	return zero, last.WithFinalAttempt()
}

func (r *Retrier) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * r.baseDelay
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
