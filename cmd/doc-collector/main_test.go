package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/doc-collector/internal/export"
	"github.com/pdiddy/doc-collector/internal/secrets"
	"github.com/pdiddy/doc-collector/pkg/types"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	loadedSecrets = nil
	t.Cleanup(func() {
		viper.Reset()
		loadedSecrets = nil
	})
}

func TestExportFormats(t *testing.T) {
	tests := []struct {
		in      string
		want    []export.Format
		wantErr bool
	}{
		{"", nil, false},
		{"csv", []export.Format{export.FormatCSV}, false},
		{"XLSX", []export.Format{export.FormatExcel}, false},
		{"excel", []export.Format{export.FormatExcel}, false},
		{" both ", []export.Format{export.FormatCSV, export.FormatExcel}, false},
		{"pdf", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := exportFormats(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestPipelineConfig_Defaults(t *testing.T) {
	resetConfig(t)

	cfg := pipelineConfig()
	assert.Equal(t, []string{"google", "bing", "duckduckgo"}, cfg.Search.Engines)
	assert.Equal(t, []string{"en"}, cfg.Search.Languages)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, time.Second, cfg.Search.PageDelay)
	assert.Equal(t, "localhost:6379", cfg.Dedup.Addr)
	assert.Equal(t, time.Hour, cfg.Dedup.TTL)
	assert.Equal(t, types.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 2, cfg.LLM.Concurrency)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "data", cfg.Storage.Dir)
	assert.False(t, cfg.Optimize)
}

func TestPipelineConfig_OverridesAndSecrets(t *testing.T) {
	resetConfig(t)
	viper.Set("search.engines", []string{"bing"})
	viper.Set("search.engine_delays", map[string]any{"bing": "2s"})
	viper.Set("llm.provider", "openai")
	viper.Set("ai.optimize", true)
	loadedSecrets = map[string]string{
		secrets.KeyRedisPassword: "hunter2",
		secrets.KeyOpenAIAPIKey:  "sk-test",
	}

	cfg := pipelineConfig()
	assert.Equal(t, []string{"bing"}, cfg.Search.Engines)
	assert.Equal(t, 2*time.Second, cfg.Search.EngineDelays["bing"])
	assert.Equal(t, "hunter2", cfg.Dedup.Password)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.True(t, cfg.Optimize)
}

func TestOpenApp_ReadOnly(t *testing.T) {
	resetConfig(t)
	viper.Set("storage.dir", t.TempDir())

	ctx := context.Background()
	a, err := openApp(ctx, false)
	require.NoError(t, err)
	defer a.Close()

	sess := &types.SessionRecord{OriginalQuery: "flood maps", Languages: []string{"en"}, Engines: []string{"bing"}}
	require.NoError(t, a.store.CreateSession(ctx, sess))

	list, err := a.collector.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "flood maps", list[0].OriginalQuery)
	assert.Empty(t, a.collector.Engines())

	summary, err := a.collector.Summary(ctx, sess.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, summary, a.collector.SessionDir(&summary.Session))
	out := buf.String()
	assert.Contains(t, out, "flood maps")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "Results:   0")
}

func TestPrintResults(t *testing.T) {
	score := 0.75
	var buf bytes.Buffer
	printResults(&buf, []types.ResultRecord{{
		ID:             7,
		Engine:         "bing",
		Language:       "en",
		Title:          "A very long title that certainly exceeds the forty character column",
		URL:            "https://example.org/a.pdf",
		DownloadStatus: types.DownloadDownloaded,
		RelevanceScore: &score,
	}})
	out := buf.String()
	assert.Contains(t, out, "0.75")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "https://example.org/a.pdf")
	assert.Contains(t, out, "1 results")

	buf.Reset()
	printResults(&buf, nil)
	assert.Equal(t, "No results.\n", buf.String())
}
