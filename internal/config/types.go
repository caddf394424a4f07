package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// BackendConfig defines how to invoke one agent CLI.
type BackendConfig struct {
	Type         string   `json:"type"`                    // "claude", "auggie", "cursor", "codex", or "goose"
	Command      string   `json:"command,omitempty"`       // CLI binary; defaults to the type's usual name
	Args         []string `json:"args,omitempty"`          // Extra args appended to every invocation
	Model        string   `json:"model,omitempty"`         // Model override
	Provider     string   `json:"provider,omitempty"`      // Goose local LLM provider (e.g., "ollama")
	SystemPrompt string   `json:"system_prompt,omitempty"` // Appended system prompt, where supported
}

// ExecutionConfig is the scheduling policy.
type ExecutionConfig struct {
	MaxParallelTasks   int    `json:"max_parallel_tasks"`   // 1..5
	FailFast           bool   `json:"fail_fast"`            // Stop submitting work after the first failure
	MaxSelfCorrections int    `json:"max_self_corrections"` // 0..10
	StrictFileScopes   bool   `json:"strict_file_scopes"`   // Independent tasks must declare files
	Subagent           string `json:"subagent,omitempty"`   // Subagent requested for every task
	RepoRoot           string `json:"repo_root,omitempty"`  // Defaults to the working directory
}

// RateLimitConfig configures retries of rate-limited backend calls.
type RateLimitConfig struct {
	MaxRetries           int      `json:"max_retries"`
	BaseDelay            Duration `json:"base_delay"`
	MaxDelay             Duration `json:"max_delay"`
	JitterFactor         float64  `json:"jitter_factor"`
	RetryableStatusCodes []int    `json:"retryable_status_codes"`
}

// BreakerConfig configures the shared circuit breaker.
type BreakerConfig struct {
	Threshold int      `json:"threshold"` // Consecutive failures to open; 0 disables
	Cooldown  Duration `json:"cooldown"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `json:"level"`         // DEBUG, INFO, WARN, or ERROR
	Dir   string `json:"dir,omitempty"` // Log file directory used while the TUI owns the terminal
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // SQLite database file
}

// Config is the top-level configuration.
type Config struct {
	Backend        string                   `json:"backend"`  // Key into Backends
	Backends       map[string]BackendConfig `json:"backends"` // Named backend definitions
	Execution      ExecutionConfig          `json:"execution"`
	RateLimit      RateLimitConfig          `json:"rate_limit"`
	CircuitBreaker BreakerConfig            `json:"circuit_breaker"`
	Logging        LoggingConfig            `json:"logging"`
	Journal        JournalConfig            `json:"journal"`
}

// Duration is a time.Duration stored in JSON as a string such as "2s".
// Plain numbers are read as nanoseconds.
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
}
