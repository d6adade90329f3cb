package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures how a failed operation is re-attempted.
type RetryConfig struct {
	// MaxAttempts counts the first attempt. Values below 1 are treated as 1.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration `yaml:"max_backoff" json:"max_backoff"`

	// BackoffFactor multiplies the wait after each failed attempt.
	BackoffFactor float64 `yaml:"backoff_factor" json:"backoff_factor"`

	// Jitter is the random spread applied to each wait (0.0-1.0).
	Jitter float64 `yaml:"jitter" json:"jitter"`

	// RetryableFunc overrides IsRetryable when set.
	RetryableFunc func(error) bool `yaml:"-" json:"-"`

	// OnRetry is called before each wait with the failed attempt number
	// (1-based), its error and the wait about to happen.
	OnRetry func(attempt int, err error, wait time.Duration) `yaml:"-" json:"-"`
}

// DefaultRetry is the reconnect policy used by chat sessions.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry makes exactly one attempt.
var NoRetry = RetryConfig{
	MaxAttempts: 1,
}

// RetryResult reports the outcome of WithRetryContext.
type RetryResult[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// WithRetry is WithRetryContext without cancellation.
func WithRetry[T any](cfg RetryConfig, fn func() (T, error)) RetryResult[T] {
	return WithRetryContext(context.Background(), cfg, func(context.Context) (T, error) {
		return fn()
	})
}

// WithRetryContext runs fn until it succeeds, returns a non-retryable error,
// exhausts cfg.MaxAttempts, or ctx is done. A failing result always carries
// a *CategorizedError so callers can inspect Category and Retries.
func WithRetryContext[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(context.Context) (T, error),
) RetryResult[T] {
	start := time.Now()
	retryable := cfg.RetryableFunc
	if retryable == nil {
		retryable = IsRetryable
	}
	maxAttempts := max(cfg.MaxAttempts, 1)

	done := func(attempts int, err error) RetryResult[T] {
		return RetryResult[T]{Err: err, Attempts: attempts, Duration: time.Since(start)}
	}

	wait := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return done(attempt-1, Permanent(err, "context cancelled"))
		}

		value, err := fn(ctx)
		if err == nil {
			return RetryResult[T]{Value: value, Attempts: attempt, Duration: time.Since(start)}
		}
		lastErr = err

		if !retryable(err) {
			return done(attempt, &CategorizedError{Err: err, Category: Categorize(err), Retries: attempt})
		}
		if attempt == maxAttempts {
			break
		}

		sleep := jittered(wait, cfg.Jitter)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, sleep)
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return done(attempt, Permanent(ctx.Err(), "context cancelled during backoff"))
		case <-timer.C:
		}

		wait = nextBackoff(wait, cfg.BackoffFactor, cfg.MaxBackoff)
	}

	return done(maxAttempts, &CategorizedError{
		Err:      lastErr,
		Category: Categorize(lastErr),
		Retries:  maxAttempts,
		Context:  "max retries exceeded",
	})
}

func nextBackoff(cur time.Duration, factor float64, ceiling time.Duration) time.Duration {
	if factor <= 0 {
		factor = 1
	}
	next := time.Duration(float64(cur) * factor)
	if ceiling > 0 && next > ceiling {
		return ceiling
	}
	return next
}

// jittered spreads base by +/- base*jitter.
func jittered(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	spread := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + spread)
}

// RetryOption adjusts a RetryConfig.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxAttempts = n }
}

// WithInitialBackoff sets the first wait.
func WithInitialBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.InitialBackoff = d }
}

// WithMaxBackoff caps the wait.
func WithMaxBackoff(d time.Duration) RetryOption {
	return func(cfg *RetryConfig) { cfg.MaxBackoff = d }
}

// WithBackoffFactor sets the wait multiplier.
func WithBackoffFactor(f float64) RetryOption {
	return func(cfg *RetryConfig) { cfg.BackoffFactor = f }
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) RetryOption {
	return func(cfg *RetryConfig) { cfg.Jitter = j }
}

// WithRetryableFunc overrides the retryability check.
func WithRetryableFunc(fn func(error) bool) RetryOption {
	return func(cfg *RetryConfig) { cfg.RetryableFunc = fn }
}

// WithOnRetry installs a hook invoked before each backoff wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) RetryOption {
	return func(cfg *RetryConfig) { cfg.OnRetry = fn }
}

// NewRetryConfig starts from DefaultRetry and applies opts.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
