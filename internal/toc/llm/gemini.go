package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend dials Google's Gemini API, grounded on the
// client-construction and error-wrapping shape of
// theRebelliousNerd-codenerd's GenAIEngine (there for embeddings; here
// for text generation via Models.GenerateContent).
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend builds a GeminiBackend. model defaults to
// "gemini-2.0-flash" when empty.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}

	return &GeminiBackend{client: client, model: model}, nil
}

func (g *GeminiBackend) Name() string { return fmt.Sprintf("gemini:%s", g.model) }

func (g *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	model := g.model
	if req.Model != "" {
		model = req.Model
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", transient(fmt.Errorf("llm: gemini generate failed: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llm: gemini returned no text candidates")
	}
	return text, nil
}
