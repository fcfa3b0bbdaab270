// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// OllamaOptions is the "options" object of a generate request.
type OllamaOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	MaxTokens     int     `json:"max_tokens"`
	NumCtx        int     `json:"num_ctx"`
	NumPredict    int     `json:"num_predict"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options OllamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaBackend calls an Ollama server's /api/generate endpoint.
type OllamaBackend struct {
	BaseURL string
	Model   string
	Options OllamaOptions
	Client  *http.Client
}

// NewOllama builds an OllamaBackend, filling unset settings with defaults.
func NewOllama(cfg types.LLMConfig, client *http.Client) *OllamaBackend {
	o := &OllamaBackend{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Model:   cfg.Model,
		Client:  client,
		Options: OllamaOptions{
			Temperature:   cfg.Temperature,
			TopP:          cfg.TopP,
			MaxTokens:     cfg.MaxTokens,
			NumCtx:        cfg.NumCtx,
			NumPredict:    cfg.NumPredict,
			RepeatPenalty: cfg.RepeatPenalty,
		},
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultOllamaURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Options.Temperature == 0 {
		o.Options.Temperature = DefaultTemperature
	}
	if o.Options.TopP == 0 {
		o.Options.TopP = DefaultTopP
	}
	if o.Options.MaxTokens == 0 {
		o.Options.MaxTokens = DefaultMaxTokens
	}
	if o.Options.NumCtx == 0 {
		o.Options.NumCtx = DefaultNumCtx
	}
	if o.Options.NumPredict == 0 {
		o.Options.NumPredict = DefaultNumPredict
	}
	if o.Options.RepeatPenalty == 0 {
		o.Options.RepeatPenalty = DefaultRepeatPenalty
	}
	return o
}

func (o *OllamaBackend) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func (o *OllamaBackend) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.Model, Prompt: prompt, Stream: stream, Options: o.Options})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Generate sends a non-streaming generate request and returns the response text.
func (o *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return strings.TrimSpace(out.Response), nil
}

// GenerateStream sends a streaming generate request and accumulates the
// newline-delimited JSON chunks until one reports done. onChunk, if non-nil,
// receives each fragment as it arrives.
func (o *OllamaBackend) GenerateStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	resp, err := o.post(ctx, prompt, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("decoding stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		sb.WriteString(chunk.Response)
		if onChunk != nil && chunk.Response != "" {
			onChunk(chunk.Response)
		}
		if chunk.Done {
			return strings.TrimSpace(sb.String()), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	return "", fmt.Errorf("stream ended before done")
}

// Available reports whether the server answers GET /api/tags.
func (o *OllamaBackend) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
