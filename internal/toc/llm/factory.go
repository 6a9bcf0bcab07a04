package llm

import (
	"context"
	"fmt"

	"github.com/a3tai/toctree/internal/config"
)

// NewBackend dials the provider named by env, per the pipeline's
// single environment contract (spec §6: provider + API key).
func NewBackend(ctx context.Context, env config.Env, model string) (Backend, error) {
	switch env.Provider {
	case config.ProviderGemini:
		return NewGeminiBackend(ctx, env.APIKey, model)
	case config.ProviderOpenAI:
		return NewOpenAIBackend(env.APIKey, model, "")
	default:
		return nil, fmt.Errorf("llm: no recognised provider configured (got %q)", env.Provider)
	}
}
