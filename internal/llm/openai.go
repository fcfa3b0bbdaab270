// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// OpenAIBackend talks to any OpenAI-compatible chat completion service
// (vLLM, llama.cpp server, LM Studio, OpenAI itself).
type OpenAIBackend struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewOpenAI builds an OpenAIBackend from cfg. A missing API key is replaced
// with a placeholder for local services that do not authenticate.
func NewOpenAI(cfg types.LLMConfig, client *http.Client) (*OpenAIBackend, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if client != nil {
		opts = append(opts, openai.WithHTTPClient(client))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return &OpenAIBackend{model: model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

// Generate sends prompt as a single human message.
func (o *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}
	callOpts := []llms.CallOption{llms.WithTemperature(o.temperature)}
	if o.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.maxTokens))
	}

	resp, err := o.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
