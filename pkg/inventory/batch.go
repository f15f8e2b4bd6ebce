// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"database/sql"
	"unicode/utf8"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// pendingBatch buffers Entry rows for a single bounded insert
// transaction, committed on a row-count or elapsed-time threshold.
type pendingBatch struct {
	store   *Store
	entries []Entry
}

func newPendingBatch(store *Store) *pendingBatch {
	return &pendingBatch{store: store}
}

func (b *pendingBatch) add(e Entry) {
	b.entries = append(b.entries, e)
}

func (b *pendingBatch) flush(ctx context.Context) error {
	if len(b.entries) == 0 {
		return nil
	}
	if err := insertEntries(ctx, b.store.db, b.entries); err != nil {
		return err
	}
	b.entries = b.entries[:0]
	return nil
}

// insertEntries inserts entries in one transaction. On a UTF-8 encoding
// failure it rolls back, filters out the offending rows (re-checked with
// utf8.ValidString), and retries once.
func insertEntries(ctx context.Context, db *sql.DB, entries []Entry) error {
	if err := insertEntriesOnce(ctx, db, entries); err != nil {
		if !isEncodingFailure(err) {
			return errors.Wrap(err, errors.CommitFailed)
		}
		clean := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if utf8.ValidString(e.Path) {
				clean = append(clean, e)
			}
		}
		if err := insertEntriesOnce(ctx, db, clean); err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
	}
	return nil
}

func insertEntriesOnce(ctx context.Context, db *sql.DB, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO fs_entries
		(path, size, atime, ctime, mtime, uid, gid, nblocks, nlink, mode, ldest, sha1, ratio, deleted)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if !utf8.ValidString(e.Path) {
			return errPathEncoding
		}
		if _, err := stmt.ExecContext(ctx, e.Path, e.Size, e.Atime.Unix(), e.Ctime.Unix(), e.Mtime.Unix(),
			e.UID, e.GID, e.NBlocks, e.NLink, e.Mode, e.LDest, e.SHA1, e.Ratio, boolToInt(e.Deleted)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// errPathEncoding is a sentinel distinguishing a non-UTF-8 path from a
// generic SQL failure, so insertEntries knows when to filter-and-retry
// rather than surface a FatalIO immediately.
var errPathEncoding = errors.New(errors.PathEncodingError, "path is not valid UTF-8")

func isEncodingFailure(err error) bool {
	code, ok := errors.GetCode(err)
	return ok && code == errors.PathEncodingError
}

// sweepNullPaths deletes rows with a null/empty path, the final step of
// the encoding discipline.
func sweepNullPaths(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DELETE FROM fs_entries WHERE path IS NULL OR path = ''`)
	if err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}
