// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"database/sql"
	"time"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// dbQuerier is the subset of *sql.DB/*sql.Tx this package queries through,
// letting MergeFrom share scan helpers across two distinct handles.
type dbQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var atime, ctime, mtime int64
	var deleted int64
	if err := rows.Scan(&e.ID, &e.Path, &e.Size, &atime, &ctime, &mtime, &e.UID, &e.GID,
		&e.NBlocks, &e.NLink, &e.Mode, &e.LDest, &e.SHA1, &e.Ratio, &deleted); err != nil {
		return Entry{}, err
	}
	e.Atime = time.Unix(atime, 0)
	e.Ctime = time.Unix(ctime, 0)
	e.Mtime = time.Unix(mtime, 0)
	e.Deleted = deleted != 0
	return e, nil
}

const entryColumns = `id, path, size, atime, ctime, mtime, uid, gid, nblocks, nlink, mode, ldest, sha1, ratio, deleted`

// latestPerPathWindow returns one window of the newest row per path,
// ordered by (path, id desc) as required by the fast-update pass.
func latestPerPathWindow(ctx context.Context, db dbQuerier, limit, offset int) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM fs_entries e
		WHERE id = (SELECT MAX(id) FROM fs_entries WHERE path = e.path)
		ORDER BY path ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.CommitFailed)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CommitFailed)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
