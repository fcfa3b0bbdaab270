package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/pdiddy/doc-collector/internal/acquire"
	"github.com/pdiddy/doc-collector/internal/collector"
	"github.com/pdiddy/doc-collector/internal/container"
	"github.com/pdiddy/doc-collector/internal/convert"
	"github.com/pdiddy/doc-collector/internal/criteria"
	"github.com/pdiddy/doc-collector/internal/dedup"
	"github.com/pdiddy/doc-collector/internal/httputil"
	"github.com/pdiddy/doc-collector/internal/llm"
	"github.com/pdiddy/doc-collector/internal/query"
	"github.com/pdiddy/doc-collector/internal/search"
	"github.com/pdiddy/doc-collector/internal/secrets"
	"github.com/pdiddy/doc-collector/internal/store"
	"github.com/pdiddy/doc-collector/pkg/types"
)

func setDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("storage.dir", collector.DefaultStorageDir)
	viper.SetDefault("storage.driver", "sqlite3")
	viper.SetDefault("storage.dsn", "")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("dedup.ttl", dedup.DefaultTTL)

	viper.SetDefault("search.engines", []string{"google", "bing", "duckduckgo"})
	viper.SetDefault("search.languages", []string{"en"})
	viper.SetDefault("search.max_results", collector.DefaultMaxResults)
	viper.SetDefault("search.pages", collector.DefaultPages)
	viper.SetDefault("search.page_delay", search.DefaultPageDelay)
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("search.user_agent", httputil.BrowserUserAgent)

	viper.SetDefault("llm.provider", string(types.ProviderOllama))
	viper.SetDefault("llm.base_url", llm.DefaultOllamaURL)
	viper.SetDefault("llm.model", llm.DefaultModel)
	viper.SetDefault("llm.temperature", llm.DefaultTemperature)
	viper.SetDefault("llm.top_p", llm.DefaultTopP)
	viper.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	viper.SetDefault("llm.num_ctx", llm.DefaultNumCtx)
	viper.SetDefault("llm.num_predict", llm.DefaultNumPredict)
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("llm.concurrency", llm.DefaultConcurrency)
	viper.SetDefault("llm.cache_size", llm.DefaultCacheSize)

	viper.SetDefault("download.timeout", acquire.DefaultTimeout)
	viper.SetDefault("download.max_size", acquire.DefaultMaxSize)
	viper.SetDefault("download.workers", acquire.DefaultWorkers)

	viper.SetDefault("convert.markitdown_image", convert.DefaultMarkitdownImage)
	viper.SetDefault("ai.optimize", false)
	viper.SetDefault("server.addr", ":8080")
}

// pipelineConfig assembles the stage settings from viper and the secrets.
func pipelineConfig() types.PipelineConfig {
	var delays map[string]time.Duration
	if err := viper.UnmarshalKey("search.engine_delays", &delays); err != nil {
		slog.Warn("ignoring search.engine_delays", "err", err)
	}

	cfg := types.PipelineConfig{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.timeout"),
				UserAgent: viper.GetString("search.user_agent"),
			},
			Engines:      viper.GetStringSlice("search.engines"),
			Languages:    viper.GetStringSlice("search.languages"),
			MaxResults:   viper.GetInt("search.max_results"),
			Pages:        viper.GetInt("search.pages"),
			PageDelay:    viper.GetDuration("search.page_delay"),
			EngineDelays: delays,
		},
		Dedup: types.DedupConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			TTL:      viper.GetDuration("dedup.ttl"),
		},
		LLM: types.LLMConfig{
			Provider:    types.LLMProvider(viper.GetString("llm.provider")),
			BaseURL:     viper.GetString("llm.base_url"),
			Model:       viper.GetString("llm.model"),
			Temperature: viper.GetFloat64("llm.temperature"),
			TopP:        viper.GetFloat64("llm.top_p"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
			NumCtx:      viper.GetInt("llm.num_ctx"),
			NumPredict:  viper.GetInt("llm.num_predict"),
			Timeout:     viper.GetDuration("llm.timeout"),
			Concurrency: viper.GetInt("llm.concurrency"),
			CacheSize:   viper.GetInt("llm.cache_size"),
		},
		Download: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("download.timeout"),
				UserAgent: viper.GetString("search.user_agent"),
			},
			MaxSize: viper.GetInt64("download.max_size"),
			Workers: viper.GetInt("download.workers"),
		},
		Storage: types.StorageConfig{
			Dir:    viper.GetString("storage.dir"),
			Driver: viper.GetString("storage.driver"),
			DSN:    viper.GetString("storage.dsn"),
		},
		Convert: types.ConvertConfig{
			MarkitdownImage: viper.GetString("convert.markitdown_image"),
		},
		Optimize: viper.GetBool("ai.optimize"),
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg
}

// app holds the long-lived resources a command needs.
type app struct {
	cfg       types.PipelineConfig
	store     *store.Store
	dedup     *dedup.Store
	llm       *llm.Client
	search    *search.Coordinator
	planner   *query.Planner
	collector *collector.Collector
}

// openApp connects the record store and the dedup store. With pipeline set
// it also builds the engines, the model client and the extractor needed to
// run sessions.
func openApp(ctx context.Context, pipeline bool) (*app, error) {
	cfg := pipelineConfig()

	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: st}

	a.dedup = dedup.New(redis.NewClient(&redis.Options{
		Addr:     cfg.Dedup.Addr,
		Password: cfg.Dedup.Password,
		DB:       cfg.Dedup.DB,
	}), dedup.WithTTL(cfg.Dedup.TTL))

	if !pipeline {
		a.collector = collector.New(st, search.NewCoordinator(nil), nil,
			collector.WithStorageDir(cfg.Storage.Dir))
		return a, nil
	}

	if err := a.dedup.Ping(ctx); err != nil {
		slog.Warn("redis unreachable, every URL will be treated as new", "addr", cfg.Dedup.Addr, "err", err)
	}

	httpClient := &http.Client{Timeout: cfg.Search.Timeout}
	handlers, err := search.NewHandlers(cfg.Search.Engines, httpClient, cfg.Search.UserAgent)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.search = search.NewCoordinator(handlers,
		search.WithPageDelay(cfg.Search.PageDelay),
		search.WithEngineDelays(cfg.Search.EngineDelays))

	gen, err := llm.NewGenerator(cfg.LLM, &http.Client{})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.llm = llm.NewClient(gen,
		llm.WithConcurrency(cfg.LLM.Concurrency),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithCache(llm.NewResponseCache(cfg.LLM.CacheSize)))

	a.planner = query.NewPlanner(query.WithCompleter(a.llm))

	a.collector = collector.New(st, a.search, acquire.NewDownloader(nil, cfg.Download),
		collector.WithDedup(a.dedup),
		collector.WithPlanner(a.planner),
		collector.WithEvaluator(criteria.New(a.llm)),
		collector.WithExtractor(newExtractor(ctx, cfg.Convert)),
		collector.WithModel(a.llm),
		collector.WithStorageDir(cfg.Storage.Dir),
		collector.WithWorkers(cfg.Download.Workers))
	return a, nil
}

// newExtractor adds the markitdown converter when a container runtime and
// the image are available.
func newExtractor(ctx context.Context, cfg types.ConvertConfig) *convert.Extractor {
	rt, err := container.Detect(ctx)
	if err != nil {
		slog.Info("PDF and Office text extraction disabled", "reason", err)
		return convert.NewExtractor()
	}
	conv, err := convert.NewMarkitdownConverter(ctx, rt, cfg.MarkitdownImage)
	if err != nil {
		slog.Info("PDF and Office text extraction disabled", "reason", err)
		return convert.NewExtractor()
	}
	return convert.NewExtractor(convert.WithConverter(conv))
}

func (a *app) Close() {
	a.dedup.Close()
	a.store.Close()
}
