// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/doc-collector/pkg/types"
)

const sessionColumns = `id, original_query, criteria, languages, engines, status, error, created_at, updated_at`

// CreateSession inserts rec in the Pending state and fills in its ID and
// timestamps.
func (s *Store) CreateSession(ctx context.Context, rec *types.SessionRecord) error {
	now := time.Now().UTC()
	langs, _ := json.Marshal(rec.Languages)
	engines, _ := json.Marshal(rec.Engines)

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO sessions (original_query, criteria, languages, engines, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rec.OriginalQuery, nullString(rec.Criteria), string(langs), string(engines),
		string(types.SessionPending), nullString(""), formatTime(now), formatTime(now),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	rec.ID = id
	rec.Status = types.SessionPending
	rec.CreatedAt, rec.UpdatedAt = now, now
	return nil
}

// GetSession returns the session with id.
func (s *Store) GetSession(ctx context.Context, id int64) (*types.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %d: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions first. A limit of zero or
// less returns every session.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]types.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []types.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// UpdateSessionStatus moves a session to status. Backward moves fail with
// types.ErrInvalidTransition. errMsg is stored when status is Failed.
func (s *Store) UpdateSessionStatus(ctx context.Context, id int64, status types.SessionStatus, errMsg string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT status FROM sessions WHERE id = ?`), id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("reading session %d: %w", id, err)
		}
		if err := types.CheckTransition(types.SessionStatus(current), status); err != nil {
			return fmt.Errorf("session %d: %w", id, err)
		}
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE sessions SET status = ?, error = ?, updated_at = ? WHERE id = ?`),
			string(status), nullString(errMsg), formatTime(time.Now().UTC()), id)
		if err != nil {
			return fmt.Errorf("updating session %d: %w", id, err)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*types.SessionRecord, error) {
	var (
		rec                  types.SessionRecord
		criteria, errMsg     sql.NullString
		langs, engines       sql.NullString
		status               string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&rec.ID, &rec.OriginalQuery, &criteria, &langs, &engines, &status, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Criteria = criteria.String
	rec.Error = errMsg.String
	rec.Status = types.SessionStatus(status)
	if langs.Valid {
		_ = json.Unmarshal([]byte(langs.String), &rec.Languages)
	}
	if engines.Valid {
		_ = json.Unmarshal([]byte(engines.String), &rec.Engines)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
