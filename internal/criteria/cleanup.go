// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package criteria

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// Rejecter marks a downloaded result as Failed and clears its file path.
type Rejecter interface {
	RejectResult(ctx context.Context, id int64) error
}

// CleanupReport counts what Cleanup did.
type CleanupReport struct {
	Removed int
	Kept    int
	Errors  int
}

// Cleanup marks every downloaded record whose ID is not in relevant as
// rejected and then deletes its file. A record whose update fails keeps its
// file. Records that are not Downloaded are ignored. A failure on one record
// is logged and cleanup continues.
func (e *Evaluator) Cleanup(ctx context.Context, records []types.ResultRecord, relevant map[int64]bool, r Rejecter) CleanupReport {
	var rep CleanupReport
	for _, rec := range records {
		if rec.DownloadStatus != types.DownloadDownloaded || rec.FilePath == "" {
			continue
		}
		if relevant[rec.ID] {
			rep.Kept++
			continue
		}

		if err := r.RejectResult(ctx, rec.ID); err != nil {
			e.logger.Error("marking document rejected", "id", rec.ID, "err", err)
			rep.Errors++
			continue
		}
		if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Error("removing rejected document", "id", rec.ID, "path", rec.FilePath, "err", err)
			rep.Errors++
			continue
		}
		rep.Removed++
	}
	e.logger.Info("cleanup completed", "removed", rep.Removed, "kept", rep.Kept, "errors", rep.Errors)
	return rep
}
