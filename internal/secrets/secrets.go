// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the file name is the key and the trimmed
// contents are the value.
//
// Recognised keys: redis_password, openai_api_key, anthropic_api_key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// DefaultDir is where the CLI looks for secrets.
const DefaultDir = ".secrets"

const (
	KeyRedisPassword   = "redis_password"
	KeyOpenAIAPIKey    = "openai_api_key"
	KeyAnthropicAPIKey = "anthropic_api_key"
)

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty map. Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "err", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills credentials in cfg that are still empty. The API key is
// chosen by the configured provider.
func Apply(cfg *types.PipelineConfig, secrets map[string]string) {
	if cfg.Dedup.Password == "" {
		cfg.Dedup.Password = secrets[KeyRedisPassword]
	}
	if cfg.LLM.APIKey != "" {
		return
	}
	switch cfg.LLM.Provider {
	case types.ProviderOpenAI:
		cfg.LLM.APIKey = secrets[KeyOpenAIAPIKey]
	case types.ProviderAnthropic:
		cfg.LLM.APIKey = secrets[KeyAnthropicAPIKey]
	}
}
