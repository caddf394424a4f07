package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/engine"
	"github.com/aristath/taskflow/internal/logging"
	"github.com/aristath/taskflow/internal/retry"
	"github.com/aristath/taskflow/internal/tasklist"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var backendTypes = []string{"claude", "auggie", "cursor", "codex", "goose"}

// Validate rejects out-of-range values and unknown backends.
func (c *Config) Validate() error {
	b, ok := c.Backends[c.Backend]
	if !ok {
		return fmt.Errorf("%w: backend %q is not defined", ErrInvalid, c.Backend)
	}
	if !isBackendType(b.Type) {
		return fmt.Errorf("%w: backend %q has unknown type %q (want one of %s)", ErrInvalid, c.Backend, b.Type, strings.Join(backendTypes, ", "))
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("%w: journal path is required when the journal is enabled", ErrInvalid)
	}

	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func isBackendType(t string) bool {
	for _, bt := range backendTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// RetryConfig converts the rate-limit section.
func (r RateLimitConfig) RetryConfig() retry.Config {
	return retry.Config{
		MaxRetries:           r.MaxRetries,
		BaseDelay:            r.BaseDelay.Duration,
		MaxDelay:             r.MaxDelay.Duration,
		JitterFactor:         r.JitterFactor,
		RetryableStatusCodes: append([]int(nil), r.RetryableStatusCodes...),
	}
}

// EngineConfig converts the execution policy for the engine.
func (c *Config) EngineConfig() engine.Config {
	policy := tasklist.ScopeWarn
	if c.Execution.StrictFileScopes {
		policy = tasklist.ScopeStrict
	}

	root := c.Execution.RepoRoot
	if root == "" {
		root = "."
	}

	return engine.Config{
		MaxParallelTasks:   c.Execution.MaxParallelTasks,
		FailFast:           c.Execution.FailFast,
		RateLimit:          c.RateLimit.RetryConfig(),
		MaxSelfCorrections: c.Execution.MaxSelfCorrections,
		Subagent:           c.Execution.Subagent,
		RepoRoot:           root,
		ScopePolicy:        policy,
		BreakerThreshold:   c.CircuitBreaker.Threshold,
		BreakerCooldown:    c.CircuitBreaker.Cooldown.Duration,
	}
}

// BackendConfig returns the selected backend's settings. The agent runs in
// the repository root unless workDir is given.
func (c *Config) BackendConfig(workDir string) (backend.Config, error) {
	b, ok := c.Backends[c.Backend]
	if !ok {
		return backend.Config{}, fmt.Errorf("%w: backend %q is not defined", ErrInvalid, c.Backend)
	}

	if workDir == "" {
		workDir = c.Execution.RepoRoot
	}
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return backend.Config{}, fmt.Errorf("getting working directory: %w", err)
		}
		workDir = wd
	}

	return backend.Config{
		Type:                 b.Type,
		Command:              b.Command,
		Args:                 append([]string(nil), b.Args...),
		WorkDir:              workDir,
		Model:                b.Model,
		Provider:             b.Provider,
		SystemPrompt:         b.SystemPrompt,
		RetryableStatusCodes: append([]int(nil), c.RateLimit.RetryableStatusCodes...),
	}, nil
}
