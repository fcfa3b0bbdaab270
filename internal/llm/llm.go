// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm talks to the language model that optimises queries and judges
// documents. Backends implement Generator; Client wraps a Generator with a
// prompt-addressed response cache and a concurrency gate.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// ErrUnavailable is returned when the backend cannot be reached.
var ErrUnavailable = errors.New("llm backend unavailable")

// Generator produces raw completion text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Checker is implemented by backends that can report reachability without
// issuing a completion.
type Checker interface {
	Available(ctx context.Context) bool
}

// Default generation settings tuned for small local models.
const (
	DefaultModel         = "llama3.2:3b"
	DefaultOllamaURL     = "http://localhost:11434"
	DefaultTemperature   = 0.1
	DefaultTopP          = 0.8
	DefaultMaxTokens     = 200
	DefaultNumCtx        = 2048
	DefaultNumPredict    = 100
	DefaultRepeatPenalty = 1.0
	DefaultConcurrency   = 2
	DefaultCacheSize     = 1000
)

// NewGenerator builds the backend selected by cfg.Provider.
func NewGenerator(cfg types.LLMConfig, client *http.Client) (Generator, error) {
	switch cfg.Provider {
	case types.ProviderOllama, "":
		return NewOllama(cfg, client), nil
	case types.ProviderOpenAI:
		return NewOpenAI(cfg, client)
	case types.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return &AnthropicBackend{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens, Client: client}, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
