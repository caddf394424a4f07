package config

import "time"

// DefaultConfig returns the default configuration with every built-in backend.
func DefaultConfig() *Config {
	return &Config{
		Backend: "claude",
		Backends: map[string]BackendConfig{
			"claude": {Type: "claude", Command: "claude"},
			"auggie": {Type: "auggie", Command: "auggie"},
			"cursor": {Type: "cursor", Command: "cursor-agent"},
			"codex":  {Type: "codex", Command: "codex"},
			"goose":  {Type: "goose", Command: "goose"},
		},
		Execution: ExecutionConfig{
			MaxParallelTasks:   3,
			FailFast:           true,
			MaxSelfCorrections: 2,
			StrictFileScopes:   true,
		},
		RateLimit: RateLimitConfig{
			MaxRetries:           3,
			BaseDelay:            Duration{2 * time.Second},
			MaxDelay:             Duration{60 * time.Second},
			JitterFactor:         0.1,
			RetryableStatusCodes: []int{429, 502, 503, 504},
		},
		CircuitBreaker: BreakerConfig{
			Threshold: 0,
			Cooldown:  Duration{30 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Dir:   ".taskflow",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    ".taskflow/journal.db",
		},
	}
}
