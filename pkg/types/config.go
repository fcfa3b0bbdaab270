package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is sent with every outbound request. Engines reject
	// non-browser agents, so the default mimics a desktop browser.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Engines lists the enabled engine handlers in fan-out order.
	Engines []string `json:"engines" yaml:"engines"`

	// Languages lists the ISO 639-1 codes to search in.
	Languages []string `json:"languages" yaml:"languages"`

	// MaxResults is the cap on results per engine per query (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Pages is the number of result pages fetched per engine (default 1).
	Pages int `json:"pages" yaml:"pages"`

	// PageDelay is the pause between sequential page fetches of one engine.
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// EngineDelays overrides the pause after each engine call, keyed by engine name.
	EngineDelays map[string]time.Duration `json:"engine_delays,omitempty" yaml:"engine_delays,omitempty"`
}

// DedupConfig holds settings for the Redis-backed deduplication store.
type DedupConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"-" yaml:"-"`
	DB       int    `json:"db" yaml:"db"`

	// TTL bounds how long a URL stays "seen" (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// LLMProvider selects the generator backend.
type LLMProvider string

const (
	ProviderOllama    LLMProvider = "ollama"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// LLMConfig holds settings for the language model used to optimise queries
// and judge documents.
type LLMConfig struct {
	Provider LLMProvider `json:"provider" yaml:"provider"`
	BaseURL  string      `json:"base_url" yaml:"base_url"`
	Model    string      `json:"model" yaml:"model"`
	APIKey   string      `json:"-" yaml:"-"`

	Temperature   float64 `json:"temperature" yaml:"temperature"`
	TopP          float64 `json:"top_p" yaml:"top_p"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`
	NumCtx        int     `json:"num_ctx" yaml:"num_ctx"`
	NumPredict    int     `json:"num_predict" yaml:"num_predict"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeat_penalty"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Concurrency is the number of LLM calls allowed in flight (default 2).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// CacheSize bounds the prompt response cache (default 1000).
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// DownloadConfig holds settings for document downloads.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxSize rejects documents larger than this many bytes (default 50 MiB).
	MaxSize int64 `json:"max_size" yaml:"max_size"`

	// Workers is the download pool size (default 5).
	Workers int `json:"workers" yaml:"workers"`
}

// StorageConfig locates session directories and the record database.
type StorageConfig struct {
	// Dir is the root under which session directories are created.
	Dir string `json:"dir" yaml:"dir"`

	// Driver is "sqlite3" or "postgres".
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the database source name; for sqlite3 a file path.
	DSN string `json:"dsn" yaml:"dsn"`
}

// ConvertConfig holds settings for text extraction.
type ConvertConfig struct {
	// MarkitdownImage is the container image used for PDF and Office files.
	MarkitdownImage string `json:"markitdown_image" yaml:"markitdown_image"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Search   SearchConfig   `json:"search" yaml:"search"`
	Dedup    DedupConfig    `json:"dedup" yaml:"dedup"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Convert  ConvertConfig  `json:"convert" yaml:"convert"`

	// Optimize enables LLM query optimisation by default.
	Optimize bool `json:"optimize" yaml:"optimize"`
}
