// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/doc-collector/pkg/types"
)

const resultColumns = `id, session_id, language, query, engine, url, title, snippet,
	file_path, file_type, file_size, download_status, relevance_score, created_at`

// CreateResult inserts rec in the Pending state. It returns false, without
// error, when the session already has a record for the URL.
func (s *Store) CreateResult(ctx context.Context, rec *types.ResultRecord) (bool, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO results (session_id, language, query, engine, url, title, snippet, download_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, url) DO NOTHING
		 RETURNING id`),
		rec.SessionID, rec.Language, rec.Query, rec.Engine, rec.URL, rec.Title, rec.Snippet,
		string(types.DownloadPending), formatTime(now), formatTime(now),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting result: %w", err)
	}

	rec.ID = id
	rec.DownloadStatus = types.DownloadPending
	rec.CreatedAt = now
	return true, nil
}

// GetResult returns the result with id.
func (s *Store) GetResult(ctx context.Context, id int64) (*types.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+resultColumns+` FROM results WHERE id = ?`), id)
	rec, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading result %d: %w", id, err)
	}
	return rec, nil
}

// ListResults returns a session's results in insertion order, optionally
// restricted to one download status.
func (s *Store) ListResults(ctx context.Context, sessionID int64, status types.DownloadStatus) ([]types.ResultRecord, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE session_id = ?`
	args := []any{sessionID}
	if status != "" {
		query += ` AND download_status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var out []types.ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// MarkDownloaded records a stored document for a pending result.
func (s *Store) MarkDownloaded(ctx context.Context, id int64, filePath, fileType string, size int64) error {
	return s.transitionResult(ctx, id, types.DownloadDownloaded,
		`file_path = ?, file_type = ?, file_size = ?`, filePath, fileType, size)
}

// MarkFailed records a failed download.
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	return s.transitionResult(ctx, id, types.DownloadFailed, `file_path = NULL`)
}

// MarkSkipped records a result that was not downloaded.
func (s *Store) MarkSkipped(ctx context.Context, id int64) error {
	return s.transitionResult(ctx, id, types.DownloadSkipped, `file_path = NULL`)
}

// RejectResult moves a downloaded result to Failed and clears its file
// path, after its document failed evaluation.
func (s *Store) RejectResult(ctx context.Context, id int64) error {
	return s.transitionResult(ctx, id, types.DownloadFailed, `file_path = NULL`)
}

// SetRelevance stores the evaluator's score for a result.
func (s *Store) SetRelevance(ctx context.Context, id int64, score float64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE results SET relevance_score = ?, updated_at = ? WHERE id = ?`),
		score, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating result %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("result %d: %w", id, ErrNotFound)
	}
	return nil
}

// transitionResult checks and applies a download status change together
// with the extra assignments in set.
func (s *Store) transitionResult(ctx context.Context, id int64, to types.DownloadStatus, set string, args ...any) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT download_status FROM results WHERE id = ?`), id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("result %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("reading result %d: %w", id, err)
		}
		if err := types.CheckTransition(types.DownloadStatus(current), to); err != nil {
			return fmt.Errorf("result %d: %w", id, err)
		}

		all := append([]any{string(to)}, args...)
		all = append(all, formatTime(time.Now().UTC()), id)
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE results SET download_status = ?, `+set+`, updated_at = ? WHERE id = ?`), all...)
		if err != nil {
			return fmt.Errorf("updating result %d: %w", id, err)
		}
		return nil
	})
}

// Summary counts a session's results by status, language and engine.
func (s *Store) Summary(ctx context.Context, sessionID int64) (*types.SessionSummary, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	results, err := s.ListResults(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}

	sum := &types.SessionSummary{
		Session:    *sess,
		Total:      len(results),
		ByStatus:   make(map[types.DownloadStatus]int),
		ByLanguage: make(map[string]int),
		ByEngine:   make(map[string]int),
	}
	for _, r := range results {
		sum.ByStatus[r.DownloadStatus]++
		sum.ByLanguage[r.Language]++
		sum.ByEngine[r.Engine]++
	}
	return sum, nil
}

func scanResult(sc scanner) (*types.ResultRecord, error) {
	var (
		rec                                  types.ResultRecord
		language, query, engine, title, snip sql.NullString
		filePath, fileType                   sql.NullString
		fileSize                             sql.NullInt64
		status, createdAt                    string
		score                                sql.NullFloat64
	)
	err := sc.Scan(&rec.ID, &rec.SessionID, &language, &query, &engine, &rec.URL, &title, &snip,
		&filePath, &fileType, &fileSize, &status, &score, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Language, rec.Query, rec.Engine = language.String, query.String, engine.String
	rec.Title, rec.Snippet = title.String, snip.String
	rec.FilePath, rec.FileType, rec.FileSize = filePath.String, fileType.String, fileSize.Int64
	rec.DownloadStatus = types.DownloadStatus(status)
	if score.Valid {
		v := score.Float64
		rec.RelevanceScore = &v
	}
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}
