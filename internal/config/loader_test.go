package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		global        string
		project       string
		expectBackend string
		expectModel   string
		expectPar     int
		expectFail    bool
		expectBackoff time.Duration
	}{
		{
			name:          "No config files - returns defaults",
			expectBackend: "claude",
			expectPar:     3,
			expectFail:    true,
			expectBackoff: 2 * time.Second,
		},
		{
			name:          "Global only - selects backend",
			global:        `{"backend": "codex", "backends": {"codex": {"type": "codex", "model": "o3"}}}`,
			expectBackend: "codex",
			expectModel:   "o3",
			expectPar:     3,
			expectFail:    true,
			expectBackoff: 2 * time.Second,
		},
		{
			name:          "Project only - overrides execution policy",
			project:       `{"execution": {"max_parallel_tasks": 5, "fail_fast": false}, "rate_limit": {"base_delay": "500ms"}}`,
			expectBackend: "claude",
			expectPar:     5,
			expectFail:    false,
			expectBackoff: 500 * time.Millisecond,
		},
		{
			name:          "Project overrides global - project wins",
			global:        `{"backend": "goose", "execution": {"max_parallel_tasks": 2}}`,
			project:       `{"backend": "claude", "backends": {"claude": {"model": "opus"}}}`,
			expectBackend: "claude",
			expectModel:   "opus",
			expectPar:     2,
			expectFail:    true,
			expectBackoff: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.global != "" {
				globalPath = writeJSON(t, tmpDir, "global.json", tt.global)
			}
			projectPath := ""
			if tt.project != "" {
				projectPath = writeJSON(t, tmpDir, "project.json", tt.project)
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.Backend != tt.expectBackend {
				t.Errorf("backend = %q, want %q", cfg.Backend, tt.expectBackend)
			}
			if got := cfg.Backends[cfg.Backend].Model; got != tt.expectModel {
				t.Errorf("model = %q, want %q", got, tt.expectModel)
			}
			if cfg.Execution.MaxParallelTasks != tt.expectPar {
				t.Errorf("max_parallel_tasks = %d, want %d", cfg.Execution.MaxParallelTasks, tt.expectPar)
			}
			if cfg.Execution.FailFast != tt.expectFail {
				t.Errorf("fail_fast = %v, want %v", cfg.Execution.FailFast, tt.expectFail)
			}
			if cfg.RateLimit.BaseDelay.Duration != tt.expectBackoff {
				t.Errorf("base_delay = %v, want %v", cfg.RateLimit.BaseDelay.Duration, tt.expectBackoff)
			}
			if len(cfg.Backends) != 5 {
				t.Errorf("backends count = %d, want 5", len(cfg.Backends))
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected merged config to be valid: %v", err)
			}
		})
	}
}

func TestLoad_BackendTypeDefaultsToName(t *testing.T) {
	tmpDir := t.TempDir()
	project := writeJSON(t, tmpDir, "project.json", `{"backends": {"claude": {"model": "sonnet"}}}`)

	cfg, err := Load("", project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Backends["claude"].Type; got != "claude" {
		t.Errorf("type = %q, want claude", got)
	}
}

func TestLoad_CustomBackend(t *testing.T) {
	tmpDir := t.TempDir()
	global := writeJSON(t, tmpDir, "global.json", `{
		"backend": "local",
		"backends": {"local": {"type": "goose", "provider": "ollama", "model": "qwen"}}
	}`)

	cfg, err := Load(global, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bc, err := cfg.BackendConfig(tmpDir)
	if err != nil {
		t.Fatalf("BackendConfig error: %v", err)
	}
	if bc.Type != "goose" || bc.Provider != "ollama" || bc.Model != "qwen" || bc.WorkDir != tmpDir {
		t.Errorf("unexpected backend config: %+v", bc)
	}
	if len(bc.RetryableStatusCodes) != 4 {
		t.Errorf("expected retryable codes to be passed through, got %v", bc.RetryableStatusCodes)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()
	globalPath := writeJSON(t, tmpDir, "global.json", "{invalid json")

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	projectPath := writeJSON(t, tmpDir, "project.json", `{"rate_limit": {"max_delay": "forever"}}`)

	if _, err := Load("", projectPath); err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}

	if cfg.Backend != "claude" {
		t.Errorf("backend = %q, want claude", cfg.Backend)
	}
	if len(cfg.Backends) != 5 {
		t.Errorf("backends count = %d, want 5", len(cfg.Backends))
	}
}
