// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists search sessions and their result records in a
// relational database. SQLite is the default; PostgreSQL is selected with
// driver "postgres". Status changes are checked against the transition
// rules in pkg/types inside a transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// ErrNotFound is returned when a session or result does not exist.
var ErrNotFound = errors.New("not found")

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
	dbFile         = "doc-collector.db"
)

// Store is the session and result record store.
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open connects to the database described by cfg and creates the schema if
// needed. With the SQLite driver and no DSN the database lives at
// cfg.Dir/doc-collector.db.
func Open(ctx context.Context, cfg types.StorageConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" || driver == "sqlite" {
		driver = driverSQLite
	}

	dsn := cfg.DSN
	switch driver {
	case driverSQLite:
		if dsn == "" {
			if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating storage directory: %w", err)
			}
			dsn = filepath.Join(cfg.Dir, dbFile) + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
		}
	case driverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires storage.dsn")
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == driverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db, postgres: driver == driverPostgres}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	idType := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.postgres {
		idType = "BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id ` + idType + `,
			original_query TEXT NOT NULL,
			criteria TEXT,
			languages TEXT,
			engines TEXT,
			status TEXT NOT NULL,
			error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id ` + idType + `,
			session_id BIGINT NOT NULL REFERENCES sessions(id),
			language TEXT,
			query TEXT,
			engine TEXT,
			url TEXT NOT NULL,
			title TEXT,
			snippet TEXT,
			file_path TEXT,
			file_type TEXT,
			file_size BIGINT,
			download_status TEXT NOT NULL,
			relevance_score REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (session_id, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_status ON results(session_id, download_status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tx runs fn in a transaction, committing when fn returns nil.
func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
