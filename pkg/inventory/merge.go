// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"database/sql"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// mergeWindow bounds how many rows MergeFrom pulls from the source
// database per round trip.
const mergeWindow = 100_000

// MergeFrom imports every row of other's fs_entries table into s in
// windowed batches, always nulling the source id so rows are re-assigned
// fresh identity on insert.
func (s *Store) MergeFrom(ctx context.Context, other *sql.DB) error {
	offset := 0
	for {
		rows, err := other.QueryContext(ctx, `SELECT `+entryColumns+` FROM fs_entries ORDER BY id ASC LIMIT ? OFFSET ?`,
			mergeWindow, offset)
		if err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}

		var window []Entry
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				rows.Close()
				return errors.Wrap(err, errors.CommitFailed)
			}
			e.ID = 0 // re-assigned on insert into s
			window = append(window, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}

		if len(window) == 0 {
			break
		}
		if err := insertEntries(ctx, s.db, window); err != nil {
			return err
		}
		if len(window) < mergeWindow {
			break
		}
		offset += mergeWindow
	}
	return nil
}

// RemoveDuplicates implements the (path asc, id desc) dedup scan: for every
// path, every row but the newest (max id) is deleted.
func (s *Store) RemoveDuplicates(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM fs_entries
		WHERE id NOT IN (SELECT MAX(id) FROM fs_entries GROUP BY path)`)
	if err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}
