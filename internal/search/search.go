// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a query out across web search engines and returns a
// merged, deduplicated and ranked batch of results.
//
// Each engine is a Handler that fetches one result page and parses it. HTML
// engines share a three-stage parse cascade (selector, aggressive, regex)
// that stops at the first stage producing results. Engine failures are
// logged and yield no results; they never abort the fan-out.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// Handler fetches and parses result pages from one search provider.
type Handler interface {
	Name() string

	// Fetch returns the raw body of result page (1-based) for query.
	Fetch(ctx context.Context, query string, page int) ([]byte, error)

	// Parse extracts at most max results from a page body.
	Parse(body []byte, max int) []types.RawResult
}

// DefaultPageDelay is the pause between sequential pages of one engine.
const DefaultPageDelay = 1 * time.Second

// DefaultEngineDelays is the pause after each call to an engine.
var DefaultEngineDelays = map[string]time.Duration{
	"google":     1 * time.Second,
	"bing":       1500 * time.Millisecond,
	"duckduckgo": 1 * time.Second,
	"baidu":      1500 * time.Millisecond,
	"arxiv":      3 * time.Second,
}

// sleep waits for d or until ctx ends. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Coordinator runs searches over a set of handlers.
type Coordinator struct {
	handlers     map[string]Handler
	order        []string
	pageDelay    time.Duration
	engineDelays map[string]time.Duration
	lanes        map[string]*sync.Mutex
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPageDelay sets the pause between pages.
func WithPageDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.pageDelay = d }
}

// WithEngineDelays overrides per-engine delays.
func WithEngineDelays(delays map[string]time.Duration) Option {
	return func(c *Coordinator) {
		for k, v := range delays {
			c.engineDelays[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator builds a Coordinator over handlers, in fan-out order.
func NewCoordinator(handlers []Handler, opts ...Option) *Coordinator {
	c := &Coordinator{
		handlers:     make(map[string]Handler, len(handlers)),
		pageDelay:    DefaultPageDelay,
		engineDelays: make(map[string]time.Duration, len(DefaultEngineDelays)),
		lanes:        make(map[string]*sync.Mutex, len(handlers)),
		logger:       slog.Default().With("component", "search"),
	}
	for k, v := range DefaultEngineDelays {
		c.engineDelays[k] = v
	}
	for _, h := range handlers {
		if _, dup := c.handlers[h.Name()]; dup {
			continue
		}
		c.handlers[h.Name()] = h
		c.order = append(c.order, h.Name())
		c.lanes[h.Name()] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engines returns the names of the registered handlers in fan-out order.
func (c *Coordinator) Engines() []string {
	return append([]string(nil), c.order...)
}

// SearchEngine fetches pageCount pages from one engine, sequentially with the
// page delay between them, and concatenates the parsed results (capped at
// maxResults). A failed page is logged and skipped. The error is non-nil only
// for an unknown engine or when every page failed.
func (c *Coordinator) SearchEngine(ctx context.Context, engine, query string, maxResults, pageCount int) ([]types.RawResult, error) {
	h, ok := c.handlers[engine]
	if !ok {
		return nil, fmt.Errorf("unknown search engine %q", engine)
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	if pageCount <= 0 {
		pageCount = 1
	}
	perPage := maxResults / pageCount
	if perPage < 1 {
		perPage = 1
	}

	var results []types.RawResult
	var lastErr error
	failed := 0
	for page := 1; page <= pageCount && len(results) < maxResults; page++ {
		if page > 1 {
			sleep(ctx, c.pageDelay)
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		body, err := h.Fetch(ctx, query, page)
		if err != nil {
			c.logger.Warn("page fetch failed", "engine", engine, "page", page, "err", err)
			lastErr = err
			failed++
			continue
		}
		parsed := h.Parse(body, perPage)
		for i := range parsed {
			parsed[i].Engine = engine
			parsed[i].Page = page
		}
		results = append(results, parsed...)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	c.logger.Info("engine search completed", "engine", engine, "results", len(results), "pages", pageCount)
	if failed == pageCount {
		return nil, fmt.Errorf("%s: %w", engine, lastErr)
	}
	return results, nil
}

// SearchOutput holds a merged batch and statistics about how it was built.
type SearchOutput struct {
	Results      []types.RawResult
	DupsRemoved  int
	EngineErrors []string
}

// SearchAll runs query on every registered engine and merges the results.
func (c *Coordinator) SearchAll(ctx context.Context, query string, maxResultsPerEngine int) SearchOutput {
	queries := make([]types.SearchQuery, 0, len(c.order))
	for _, name := range c.order {
		queries = append(queries, types.SearchQuery{Text: query, Engine: name, Type: types.QueryOriginal, Confidence: 1})
	}
	return c.SearchQueries(ctx, queries, maxResultsPerEngine, 1)
}

// SearchQueries runs every query as its own task and merges the results.
// Tasks for different engines run concurrently; tasks for the same engine
// take turns so the engine's delay throttles them. Each result is tagged with
// the query and language that produced it.
func (c *Coordinator) SearchQueries(ctx context.Context, queries []types.SearchQuery, maxResults, pages int) SearchOutput {
	type taskResult struct {
		results []types.RawResult
		err     error
		engine  string
	}

	ch := make(chan taskResult, len(queries))
	var wg sync.WaitGroup

	for _, q := range queries {
		lane, ok := c.lanes[q.Engine]
		if !ok {
			ch <- taskResult{engine: q.Engine, err: fmt.Errorf("unknown search engine %q", q.Engine)}
			continue
		}
		wg.Add(1)
		go func(q types.SearchQuery, lane *sync.Mutex) {
			defer wg.Done()
			lane.Lock()
			defer lane.Unlock()

			results, err := c.SearchEngine(ctx, q.Engine, q.Text, maxResults, pages)
			for i := range results {
				results[i].Query = q.Text
				results[i].Language = q.Language
			}
			ch <- taskResult{results: results, err: err, engine: q.Engine}

			// Unconditional, success or not.
			sleep(ctx, c.engineDelays[q.Engine])
		}(q, lane)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.RawResult
	var engineErrors []string
	for tr := range ch {
		if tr.err != nil {
			engineErrors = append(engineErrors, fmt.Sprintf("%s: %v", tr.engine, tr.err))
			c.logger.Warn("engine failed", "engine", tr.engine, "err", tr.err)
			continue
		}
		all = append(all, tr.results...)
	}

	merged, removed := Merge(all)
	return SearchOutput{Results: merged, DupsRemoved: removed, EngineErrors: engineErrors}
}

// Merge drops duplicate URLs, scores every result and sorts by descending
// score. Ties keep their arrival order.
func Merge(results []types.RawResult) ([]types.RawResult, int) {
	seen := make(map[string]struct{}, len(results))
	var unique []types.RawResult
	removed := 0
	for _, r := range results {
		key := normalizeURL(r.URL)
		if key == "" {
			removed++
			continue
		}
		if _, ok := seen[key]; ok {
			removed++
			continue
		}
		seen[key] = struct{}{}
		r.Score = Score(r)
		unique = append(unique, r)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})
	return unique, removed
}

// normalizeURL lower-cases a URL and strips its scheme and trailing slash.
func normalizeURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimRight(u, "/")
}

// FormatTable writes results as a human-readable table to w.
func FormatTable(out SearchOutput, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-50s  %-11s  %-4s  %-6s  %s\n",
		"Rank", "Title", "Engine", "Lang", "Score", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, r := range out.Results {
		fmt.Fprintf(w, "%-4d  %-50s  %-11s  %-4s  %-6.2f  %s\n",
			i+1, truncate(r.Title, 50), r.Engine, r.Language, r.Score, r.URL)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Results))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
	for _, e := range out.EngineErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(out SearchOutput, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Results)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
