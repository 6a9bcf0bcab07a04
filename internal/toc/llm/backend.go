// Package llm implements the shared LLM Client leaf every later phase
// calls through: bounded concurrency, JSON-mode prompting, retry with
// backoff for transient failures only, and a single re-prompt on
// malformed JSON before surfacing the failure. Two backends are wired,
// Gemini (google.golang.org/genai) and an OpenAI-compatible
// chat-completions client, selected by internal/config.Provider.
package llm

import "context"

// Request is one generation call. JSONMode requests the backend's
// structured-output mode and is paired with a prompt that contains the
// literal word "json", the requirement most JSON-mode APIs enforce.
type Request struct {
	Prompt   string
	JSONMode bool
	Model    string
}

// Backend dials a specific LLM provider. Implementations return a
// transientError (see errors.go) for failures worth retrying, and a
// plain error otherwise.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}
