package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/retry"
	"github.com/aristath/taskflow/internal/tasklist"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid engine config")

const (
	// MaxParallelLimit is the hard ceiling on concurrent workers.
	MaxParallelLimit = 5
	// MaxSelfCorrectionsLimit bounds the correction loop.
	MaxSelfCorrectionsLimit = 10
)

// Config is the caller-supplied execution policy. The engine performs no file
// or environment I/O to obtain it.
type Config struct {
	MaxParallelTasks   int // 1..5
	FailFast           bool
	RateLimit          retry.Config
	MaxSelfCorrections int    // 0..10; 0 disables self-correction
	Subagent           string // Optional subagent passed to every backend call

	RepoRoot    string               // Root that every target file must stay inside
	ScopePolicy tasklist.ScopePolicy // How Independent tasks without files are treated

	BreakerThreshold int           // Consecutive failures that open the breaker; 0 disables it
	BreakerCooldown  time.Duration // How long the breaker stays open
}

// DefaultConfig returns the default execution policy.
func DefaultConfig() Config {
	return Config{
		MaxParallelTasks:   3,
		FailFast:           true,
		RateLimit:          retry.DefaultConfig(),
		MaxSelfCorrections: 2,
		RepoRoot:           ".",
		ScopePolicy:        tasklist.ScopeStrict,
		BreakerCooldown:    30 * time.Second,
	}
}

// Validate reports out-of-range settings.
func (c Config) Validate() error {
	if c.MaxParallelTasks < 1 || c.MaxParallelTasks > MaxParallelLimit {
		return fmt.Errorf("%w: max parallel tasks must be in [1, %d], got %d", ErrInvalidConfig, MaxParallelLimit, c.MaxParallelTasks)
	}
	if c.MaxSelfCorrections < 0 || c.MaxSelfCorrections > MaxSelfCorrectionsLimit {
		return fmt.Errorf("%w: max self corrections must be in [0, %d], got %d", ErrInvalidConfig, MaxSelfCorrectionsLimit, c.MaxSelfCorrections)
	}
	if c.BreakerThreshold < 0 {
		return fmt.Errorf("%w: breaker threshold must be >= 0, got %d", ErrInvalidConfig, c.BreakerThreshold)
	}
	if c.BreakerThreshold > 0 && c.BreakerCooldown <= 0 {
		return fmt.Errorf("%w: breaker cooldown must be > 0 when the breaker is enabled", ErrInvalidConfig)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	return nil
}
