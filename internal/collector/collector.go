// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collector runs a search session end to end: it plans the queries,
// searches every (language, engine) pair, admits each URL once per session,
// downloads the documents, and, when criteria are given, judges them with
// the language model and removes the ones that do not qualify.
//
// A session only moves forward: pending, processing, then completed or
// failed. Recoverable problems (an engine, a download, a model call) are
// logged and absorbed; a record store error fails the session.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/pdiddy/doc-collector/internal/acquire"
	"github.com/pdiddy/doc-collector/internal/convert"
	"github.com/pdiddy/doc-collector/internal/criteria"
	"github.com/pdiddy/doc-collector/internal/dedup"
	"github.com/pdiddy/doc-collector/internal/query"
	"github.com/pdiddy/doc-collector/internal/search"
	"github.com/pdiddy/doc-collector/internal/store"
	"github.com/pdiddy/doc-collector/pkg/types"
)

var (
	ErrEmptyQuery    = errors.New("empty query")
	ErrNoEngines     = errors.New("no search engines enabled")
	ErrUnknownEngine = errors.New("unknown search engine")
)

const (
	DefaultMaxResults = 10
	DefaultPages      = 1
	DefaultStorageDir = "data"
)

// Request holds the parameters of one search session.
type Request struct {
	Query     string   `json:"query"`
	Criteria  string   `json:"criteria,omitempty"`
	Languages []string `json:"languages,omitempty"`

	// Engines defaults to every engine the collector was built with.
	Engines []string `json:"engines,omitempty"`

	MaxResults int  `json:"max_results,omitempty"`
	Pages      int  `json:"pages,omitempty"`
	Optimize   bool `json:"optimize,omitempty"`
}

// Availability reports whether the language model can be reached.
type Availability interface {
	Available(ctx context.Context) bool
}

// Collector wires the pipeline stages around a record store.
type Collector struct {
	store      *store.Store
	search     *search.Coordinator
	downloader *acquire.Downloader
	dedup      *dedup.Store
	planner    *query.Planner
	evaluator  *criteria.Evaluator
	extractor  *convert.Extractor
	model      Availability
	storageDir string
	workers    int
	logger     *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithDedup admits URLs through the Redis deduplication store. Without it
// the record store's per-session uniqueness is the only guard.
func WithDedup(d *dedup.Store) Option {
	return func(c *Collector) { c.dedup = d }
}

// WithPlanner sets the query planner.
func WithPlanner(p *query.Planner) Option {
	return func(c *Collector) { c.planner = p }
}

// WithEvaluator enables criteria filtering.
func WithEvaluator(e *criteria.Evaluator) Option {
	return func(c *Collector) { c.evaluator = e }
}

// WithExtractor sets the text extractor used before evaluation.
func WithExtractor(e *convert.Extractor) Option {
	return func(c *Collector) { c.extractor = e }
}

// WithModel sets the availability check run before optimisation and
// filtering. Without it the model is assumed reachable.
func WithModel(m Availability) Option {
	return func(c *Collector) { c.model = m }
}

// WithStorageDir sets the root of the session directories.
func WithStorageDir(dir string) Option {
	return func(c *Collector) {
		if dir != "" {
			c.storageDir = dir
		}
	}
}

// WithWorkers sets the download pool size.
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// New creates a Collector.
func New(st *store.Store, coord *search.Coordinator, dl *acquire.Downloader, opts ...Option) *Collector {
	c := &Collector{
		store:      st,
		search:     coord,
		downloader: dl,
		planner:    query.NewPlanner(),
		extractor:  convert.NewExtractor(),
		storageDir: DefaultStorageDir,
		workers:    acquire.DefaultWorkers,
		logger:     slog.Default().With("component", "collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engines lists the engines sessions may use.
func (c *Collector) Engines() []string {
	return c.search.Engines()
}

// StorageDir returns the root of the session directories.
func (c *Collector) StorageDir() string {
	return c.storageDir
}

// StartSearch creates a session for req and runs it to completion. The
// session ID is returned even when the run fails.
func (c *Collector) StartSearch(ctx context.Context, req Request) (int64, error) {
	sess, err := c.Create(ctx, req)
	if err != nil {
		return 0, err
	}
	return sess.ID, c.Run(ctx, sess, req)
}

// Create validates req and records a pending session for it.
func (c *Collector) Create(ctx context.Context, req Request) (*types.SessionRecord, error) {
	req, err := c.normalize(req)
	if err != nil {
		return nil, err
	}
	sess := &types.SessionRecord{
		OriginalQuery: req.Query,
		Criteria:      req.Criteria,
		Languages:     req.Languages,
		Engines:       req.Engines,
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	c.logger.Info("session created", "session", sess.ID, "query", req.Query,
		"languages", req.Languages, "engines", req.Engines)
	return sess, nil
}

func (c *Collector) normalize(req Request) (Request, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Criteria = strings.TrimSpace(req.Criteria)
	if req.Query == "" {
		return req, ErrEmptyQuery
	}

	req.Languages = uniqueLower(req.Languages)
	if len(req.Languages) == 0 {
		req.Languages = []string{"en"}
	}

	available := c.search.Engines()
	req.Engines = uniqueLower(req.Engines)
	if len(req.Engines) == 0 {
		req.Engines = available
	}
	if len(req.Engines) == 0 {
		return req, ErrNoEngines
	}
	for _, e := range req.Engines {
		if !slices.Contains(available, e) {
			return req, fmt.Errorf("%w: %s", ErrUnknownEngine, e)
		}
	}

	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}
	if req.Pages <= 0 {
		req.Pages = DefaultPages
	}
	return req, nil
}

func uniqueLower(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Run processes a pending session. Any error it returns has already been
// recorded on the session as a failure.
func (c *Collector) Run(ctx context.Context, sess *types.SessionRecord, req Request) error {
	req, err := c.normalize(req)
	if err != nil {
		return c.fail(ctx, sess.ID, err)
	}
	if err := c.store.UpdateSessionStatus(ctx, sess.ID, types.SessionProcessing, ""); err != nil {
		return c.fail(ctx, sess.ID, fmt.Errorf("starting session: %w", err))
	}
	if err := c.process(ctx, sess, req); err != nil {
		return c.fail(ctx, sess.ID, err)
	}
	if err := c.store.UpdateSessionStatus(ctx, sess.ID, types.SessionCompleted, ""); err != nil {
		return c.fail(ctx, sess.ID, fmt.Errorf("completing session: %w", err))
	}
	c.logger.Info("session completed", "session", sess.ID)
	return nil
}

// fail marks the session failed. The update runs even if ctx is done.
func (c *Collector) fail(ctx context.Context, id int64, cause error) error {
	c.logger.Error("session failed", "session", id, "err", cause)
	if err := c.store.UpdateSessionStatus(context.WithoutCancel(ctx), id, types.SessionFailed, cause.Error()); err != nil {
		c.logger.Error("recording session failure", "session", id, "err", err)
	}
	return cause
}

func (c *Collector) process(ctx context.Context, sess *types.SessionRecord, req Request) error {
	log := c.logger.With("session", sess.ID)

	dir := acquire.SessionDir(c.storageDir, sess.ID, sess.CreatedAt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	modelUp := true
	if (req.Optimize || req.Criteria != "") && c.model != nil {
		modelUp = c.model.Available(ctx)
		if !modelUp {
			log.Warn("language model unavailable, skipping optimisation and filtering")
		}
	}
	filter := req.Criteria != "" && c.evaluator != nil && modelUp

	var ac types.AnalyzedCriteria
	if filter {
		ac = c.evaluator.Analyze(ctx, req.Criteria)
		log.Info("criteria analysed", "criteria", len(ac.SpecificCriteria),
			"min_met", ac.MinCriteriaMet, "degraded", ac.Degraded)
	}

	queries := c.planner.Build(ctx, req.Query, req.Languages, req.Engines, req.Optimize && modelUp)
	c.writeQueryCSV(dir, queries, log)

	out := c.search.SearchQueries(ctx, queries, req.MaxResults, req.Pages)
	c.writeQueryPlan(dir, req, queries, out, modelUp, log)
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Info("search finished", "results", len(out.Results),
		"duplicates", out.DupsRemoved, "engine_errors", len(out.EngineErrors))

	records, err := c.admit(ctx, sess.ID, out.Results)
	if err != nil {
		return err
	}
	if err := c.download(ctx, records, dir); err != nil {
		return err
	}
	if filter {
		return c.filter(ctx, sess.ID, ac)
	}
	return nil
}

// admit records one result per URL not yet seen in the session. Results are
// admitted one at a time.
func (c *Collector) admit(ctx context.Context, sessionID int64, results []types.RawResult) ([]types.ResultRecord, error) {
	var records []types.ResultRecord
	duplicates := 0
	for _, r := range results {
		if c.dedup != nil {
			ok, prev := c.dedup.Admit(ctx, r.URL, sessionID, dedup.Payload{
				Title: r.Title, Engine: r.Engine, Language: r.Language,
			})
			if !ok {
				duplicates++
				if prev != nil {
					c.logger.Debug("duplicate url", "session", sessionID, "url", r.URL, "first_engine", prev.Engine)
				}
				continue
			}
		}

		rec := &types.ResultRecord{
			SessionID: sessionID,
			Language:  r.Language,
			Query:     r.Query,
			Engine:    r.Engine,
			URL:       r.URL,
			Title:     r.Title,
			Snippet:   r.Snippet,
		}
		created, err := c.store.CreateResult(ctx, rec)
		if err != nil {
			return nil, err
		}
		if !created {
			duplicates++
			continue
		}
		records = append(records, *rec)
	}
	c.logger.Info("results admitted", "session", sessionID, "admitted", len(records), "duplicates", duplicates)
	return records, nil
}
