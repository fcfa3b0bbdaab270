// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collector

import (
	"context"
	"io"

	"github.com/pdiddy/doc-collector/internal/acquire"
	"github.com/pdiddy/doc-collector/internal/export"
	"github.com/pdiddy/doc-collector/pkg/types"
)

// Session returns one session record.
func (c *Collector) Session(ctx context.Context, id int64) (*types.SessionRecord, error) {
	return c.store.GetSession(ctx, id)
}

// Sessions returns the most recent sessions, newest first.
func (c *Collector) Sessions(ctx context.Context, limit int) ([]types.SessionRecord, error) {
	return c.store.ListSessions(ctx, limit)
}

// Summary counts a session's results by status, language and engine.
func (c *Collector) Summary(ctx context.Context, id int64) (*types.SessionSummary, error) {
	return c.store.Summary(ctx, id)
}

// Results lists a session's results, optionally filtered by status.
func (c *Collector) Results(ctx context.Context, id int64, status types.DownloadStatus) ([]types.ResultRecord, error) {
	if _, err := c.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return c.store.ListResults(ctx, id, status)
}

// SessionDir returns the directory holding a session's documents.
func (c *Collector) SessionDir(sess *types.SessionRecord) string {
	if dir, ok := acquire.FindSessionDir(c.storageDir, sess.ID); ok {
		return dir
	}
	return acquire.SessionDir(c.storageDir, sess.ID, sess.CreatedAt)
}

// Export writes the surviving documents of a session to w.
func (c *Collector) Export(ctx context.Context, id int64, format export.Format, w io.Writer) (int, error) {
	records, err := c.Results(ctx, id, types.DownloadDownloaded)
	if err != nil {
		return 0, err
	}
	return export.Write(w, format, records)
}

// ExportFile writes the export into the session directory and returns its
// path and row count.
func (c *Collector) ExportFile(ctx context.Context, id int64, format export.Format) (string, int, error) {
	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return "", 0, err
	}
	records, err := c.store.ListResults(ctx, id, types.DownloadDownloaded)
	if err != nil {
		return "", 0, err
	}
	return export.File(c.SessionDir(sess), id, format, records)
}
