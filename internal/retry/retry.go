package retry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid rate limit config")

// ErrRetryExhausted matches any *ExhaustedError via errors.Is.
var ErrRetryExhausted = errors.New("rate limit retries exhausted")

// Config configures rate-limit-aware retry.
type Config struct {
	MaxRetries           int           // Retries after the first attempt; 0 disables retry
	BaseDelay            time.Duration // First backoff delay
	MaxDelay             time.Duration // Cap on any single delay (before jitter)
	JitterFactor         float64       // Multiplicative jitter in [0, 1]
	RetryableStatusCodes []int         // HTTP-class codes treated as transient
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		BaseDelay:            2 * time.Second,
		MaxDelay:             60 * time.Second,
		JitterFactor:         0.1,
		RetryableStatusCodes: []int{429, 502, 503, 504},
	}
}

// Validate reports an invalid combination of settings.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.MaxRetries > 0 && c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be > 0 when retries are enabled, got %v", ErrInvalidConfig, c.BaseDelay)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay %v is less than base delay %v", ErrInvalidConfig, c.MaxDelay, c.BaseDelay)
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("%w: jitter factor must be in [0, 1], got %v", ErrInvalidConfig, c.JitterFactor)
	}
	for _, code := range c.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("%w: status code %d out of range", ErrInvalidConfig, code)
		}
	}
	return nil
}

// IsRetryableStatus reports whether code is one of the configured transient codes.
func (c Config) IsRetryableStatus(code int) bool {
	return slices.Contains(c.RetryableStatusCodes, code)
}

// Result is the outcome of one call that was not rate limited.
type Result struct {
	Success bool
	Output  string
}

// RateLimitError marks a call as rate limited and therefore retryable.
type RateLimitError struct {
	Output string
}

func (e *RateLimitError) Error() string {
	return "rate limited"
}

// ExhaustedError is returned when every allowed attempt was rate limited.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("rate limit retries exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }

// Func is a retryable call. Returning a *RateLimitError requests a retry; any
// other error is terminal.
type Func func(ctx context.Context) (Result, error)

// OnRetry is called before each backoff sleep with the 1-based number of the
// attempt that was rate limited.
type OnRetry func(attempt int, delay time.Duration, err error)

// Option customizes a Controller.
type Option func(*Controller)

// WithTimer overrides how backoff sleeps are timed. Each Do call gets its own
// timer from newTimer.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *Controller) {
		c.newTimer = newTimer
	}
}

// Controller retries rate-limited calls with exponential backoff and jitter.
// A Controller is immutable and safe for concurrent use.
type Controller struct {
	cfg      Config
	newTimer func() backoff.Timer
}

// New validates cfg and returns a Controller.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.RetryableStatusCodes = slices.Clone(cfg.RetryableStatusCodes)
	c := &Controller{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the controller's configuration.
func (c *Controller) Config() Config {
	cfg := c.cfg
	cfg.RetryableStatusCodes = slices.Clone(c.cfg.RetryableStatusCodes)
	return cfg
}

// Do runs fn, retrying while it returns a *RateLimitError. The delay before
// retry n is min(MaxDelay, BaseDelay*2^(n-1)) scaled by 1±JitterFactor. Once
// MaxRetries retries are used up, Do returns an *ExhaustedError.
func (c *Controller) Do(ctx context.Context, fn Func, onRetry OnRetry) (Result, error) {
	attempts := 0

	operation := func() (Result, error) {
		if err := ctx.Err(); err != nil {
			return Result{}, backoff.Permanent(err)
		}

		attempts++
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		var rl *RateLimitError
		if errors.As(err, &rl) {
			return Result{Output: rl.Output}, err
		}
		return res, backoff.Permanent(err)
	}

	notify := func(err error, delay time.Duration) {
		if onRetry != nil {
			onRetry(attempts, delay, err)
		}
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	res, err := backoff.RetryNotifyWithTimerAndData(operation, c.policy(ctx), notify, timer)
	if err == nil {
		return res, nil
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return res, &ExhaustedError{Attempts: attempts, Last: err}
	}
	return res, err
}

// policy builds a fresh backoff for one Do call.
func (c *Controller) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BaseDelay
	exp.MaxInterval = c.cfg.MaxDelay
	exp.Multiplier = 2.0
	exp.RandomizationFactor = c.cfg.JitterFactor
	exp.MaxElapsedTime = 0 // bounded by attempt count only

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.cfg.MaxRetries)), ctx)
}
