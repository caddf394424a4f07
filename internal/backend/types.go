package backend

// Config defines the configuration for a backend.
type Config struct {
	Type                 string   // "claude", "auggie", "cursor", "codex", or "goose"
	Command              string   // Binary override; defaults to the type's CLI name
	Args                 []string // Extra args appended to every invocation
	WorkDir              string
	Model                string
	Provider             string // For Goose local LLMs (e.g., "ollama", "lmstudio")
	SystemPrompt         string
	RetryableStatusCodes []int // Status codes that signal a transient failure in output
}
