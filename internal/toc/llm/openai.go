package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAIBackend dials an OpenAI-compatible chat-completions endpoint.
// No example repo in the pack wires an OpenAI client library (the
// pack's only other LLM-HTTP code is a hand-rolled Gemini REST client,
// not reusable for a second, differently-shaped provider), so this is
// the one ambient piece built directly on net/http rather than an
// ecosystem dependency.
type OpenAIBackend struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// NewOpenAIBackend builds an OpenAIBackend. baseURL defaults to the
// public OpenAI API, allowing OpenAI-compatible third-party endpoints
// to be substituted by configuration.
func NewOpenAIBackend(apiKey, model, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAIBackend{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}, nil
}

func (o *OpenAIBackend) Name() string { return fmt.Sprintf("openai:%s", o.model) }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (o *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}

	body := chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: encoding openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: building openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", transient(fmt.Errorf("llm: openai request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transient(fmt.Errorf("llm: reading openai response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", transient(fmt.Errorf("llm: openai returned status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("llm: decoding openai response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("llm: openai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: openai returned status %d: %s", resp.StatusCode, string(raw))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
