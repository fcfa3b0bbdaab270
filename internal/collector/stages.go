// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collector

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/doc-collector/internal/acquire"
	"github.com/pdiddy/doc-collector/internal/criteria"
	"github.com/pdiddy/doc-collector/internal/export"
	"github.com/pdiddy/doc-collector/internal/search"
	"github.com/pdiddy/doc-collector/pkg/types"
)

const (
	queryPlanFile = "queries.yaml"
	queryCSVFile  = "queries.csv"
)

// download fetches every downloadable record on a bounded pool. Records
// that are not documents are marked skipped. Download failures mark the
// record failed; only record store errors are returned.
func (c *Collector) download(ctx context.Context, records []types.ResultRecord, dir string) error {
	pool, err := ants.NewPool(c.workers)
	if err != nil {
		return fmt.Errorf("creating download pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, rec := range records {
		if !acquire.IsDownloadable(rec.URL) || !acquire.Supported(acquire.FileType(rec.URL)) {
			if err := c.store.MarkSkipped(ctx, rec.ID); err != nil {
				setErr(err)
				break
			}
			continue
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := c.fetch(ctx, rec, dir); err != nil {
				setErr(err)
			}
		})
		if err != nil {
			wg.Done()
			c.logger.Warn("download not scheduled", "id", rec.ID, "err", err)
			if err := c.store.MarkFailed(ctx, rec.ID); err != nil {
				setErr(err)
			}
		}
	}
	wg.Wait()
	return firstErr
}

func (c *Collector) fetch(ctx context.Context, rec types.ResultRecord, dir string) error {
	d, err := c.downloader.Download(ctx, rec.URL, rec.Title, dir)
	if err != nil {
		c.logger.Warn("download failed", "id", rec.ID, "url", rec.URL, "err", err)
		return c.store.MarkFailed(context.WithoutCancel(ctx), rec.ID)
	}
	c.logger.Info("document downloaded", "id", rec.ID, "path", d.Path, "bytes", d.Size)
	return c.store.MarkDownloaded(ctx, rec.ID, d.Path, d.FileType, d.Size)
}

// filter judges every downloaded document against ac and removes the ones
// that are not relevant. A document whose text cannot be extracted is
// judged on its title and snippet.
func (c *Collector) filter(ctx context.Context, sessionID int64, ac types.AnalyzedCriteria) error {
	downloaded, err := c.store.ListResults(ctx, sessionID, types.DownloadDownloaded)
	if err != nil {
		return err
	}
	if len(downloaded) == 0 {
		return nil
	}

	docs := make([]criteria.Document, 0, len(downloaded))
	for _, rec := range downloaded {
		text, err := c.extractor.Extract(ctx, rec.FilePath, rec.FileType)
		if err != nil {
			c.logger.Warn("text extraction failed, using title and snippet", "id", rec.ID, "err", err)
			text = strings.TrimSpace(rec.Title + "\n" + rec.Snippet)
		}
		docs = append(docs, criteria.Document{ID: rec.ID, Title: rec.Title, Content: text})
	}

	verdicts, err := c.evaluator.EvaluateBatch(ctx, docs, ac)
	if err != nil {
		return err
	}
	for id, v := range verdicts {
		if err := c.store.SetRelevance(ctx, id, v.Score); err != nil {
			return err
		}
	}

	rep := c.evaluator.Cleanup(ctx, downloaded, criteria.RelevantIDs(verdicts), c.store)
	c.logger.Info("documents filtered", "session", sessionID,
		"kept", rep.Kept, "removed", rep.Removed, "errors", rep.Errors)
	return nil
}

func (c *Collector) writeQueryCSV(dir string, queries []types.SearchQuery, log *slog.Logger) {
	if err := export.QueriesFile(filepath.Join(dir, queryCSVFile), queries); err != nil {
		log.Warn("writing query csv", "err", err)
	}
}

func (c *Collector) writeQueryPlan(dir string, req Request, queries []types.SearchQuery, out search.SearchOutput, optimized bool, log *slog.Logger) {
	plan := &search.QueryPlan{
		Query:    req.Query,
		Criteria: req.Criteria,
		Config: search.QueryPlanConfig{
			MaxResults: req.MaxResults,
			Pages:      req.Pages,
			Optimized:  req.Optimize && optimized,
			Engines:    req.Engines,
			Languages:  req.Languages,
		},
		Queries: queries,
	}
	plan.Summarize(out)
	if err := search.WriteQueryPlan(filepath.Join(dir, queryPlanFile), plan); err != nil {
		log.Warn("writing query plan", "err", err)
	}
}
