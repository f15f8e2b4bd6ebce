// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package inventory implements the filesystem-inventory engine: a
// wide `fs_entries` table recording one row per visited path, populated by
// an initial crawl (SHA-1 + LZ4-ratio estimate), kept current by windowed
// fast updates, and maintainable via cross-database merge and
// newest-row-per-path deduplication.
package inventory

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS fs_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT,
	size INTEGER,
	atime INTEGER,
	ctime INTEGER,
	mtime INTEGER,
	uid INTEGER,
	gid INTEGER,
	nblocks INTEGER,
	nlink INTEGER,
	mode INTEGER,
	ldest TEXT,
	sha1 TEXT,
	ratio REAL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_fs_entries_path_id ON fs_entries(path, id DESC);
`

// Entry is one row of fs_entries.
type Entry struct {
	ID      int64
	Path    string
	Size    int64
	Atime   time.Time
	Ctime   time.Time
	Mtime   time.Time
	UID     int
	GID     int
	NBlocks int64
	NLink   int
	Mode    uint32
	LDest   string // symlink target, "" for non-symlinks
	SHA1    string
	Ratio   float64 // running mean LZ4 compression ratio
	Deleted bool
}

// Store owns the sqlite-backed fs_entries table.
type Store struct {
	db  *sql.DB
	log logger.Logger

	// CommitRowBatch/CommitTimeBudget bound how many pending rows a crawl
	// batches before committing.
	CommitRowBatch   int
	CommitTimeBudget time.Duration
}

// Open opens (creating if absent) the sqlite database at dsn and applies
// the fs_entries schema.
func Open(dsn string, logCfg logger.Config) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	l, err := logger.NewTag(logCfg, "inventory")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	return &Store{
		db:               db,
		log:              l,
		CommitRowBatch:   15000,
		CommitTimeBudget: 30 * time.Second,
	}, nil
}

// EnsurePathIndex creates the idx_fs_entries_path index on
// fs_entries(path, id DESC) if it does not exist yet. The base schema
// applied by Open already creates idx_fs_entries_path_id with the same
// columns, so this adds a second index of the same shape.
func (s *Store) EnsurePathIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_fs_entries_path ON fs_entries(path, id DESC)`)
	if err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}

// DB exposes the underlying *sql.DB, used by MergeFrom's cross-database
// windowed import.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
