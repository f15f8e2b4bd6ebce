// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"os"
	"path/filepath"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// FastUpdateWindow bounds how many latest-per-path rows FastUpdate pulls
// into memory per window.
const FastUpdateWindow = 1_000_000

// FastUpdate windows the latest row per path (by (path, id desc)) and
// re-stats each: a failed stat appends a deletion row (preserving the
// last-known sha1); otherwise it compares (mtime, size, uid, gid, mode,
// nlink, symlink target) and, only when size changed, re-streams the
// content to justify a new hash - otherwise it carries the prior
// (sha1, ratio) forward unchanged.
func (c *Crawler) FastUpdate(ctx context.Context) error {
	offset := 0
	for {
		window, err := latestPerPathWindow(ctx, c.Store.db, FastUpdateWindow, offset)
		if err != nil {
			return err
		}
		if len(window) == 0 {
			break
		}

		batch := newPendingBatch(c.Store)
		for _, prev := range window {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			c.Visited[filepath.Dir(prev.Path)] = true

			info, err := os.Lstat(prev.Path)
			if err != nil {
				if isSkippable(err) {
					batch.add(deletionRowFrom(prev))
					continue
				}
				return errors.Wrap(err, errors.FSError)
			}

			next := entryFromInfo(prev.Path, info)
			if !statChanged(prev, next) {
				continue
			}

			if info.Mode().IsRegular() && next.Size != prev.Size {
				sha1hex, ratio, size, err := hashFile(ctx, prev.Path)
				if err != nil {
					return err
				}
				next.SHA1 = sha1hex
				next.Ratio = ratio
				next.Size = size
			} else {
				next.SHA1 = prev.SHA1
				next.Ratio = prev.Ratio
			}
			batch.add(next)
		}
		if err := batch.flush(ctx); err != nil {
			return err
		}

		if len(window) < FastUpdateWindow {
			break
		}
		offset += FastUpdateWindow
	}
	return sweepNullPaths(ctx, c.Store.db)
}

func deletionRowFrom(prev Entry) Entry {
	return Entry{
		Path:    prev.Path,
		SHA1:    prev.SHA1,
		Ratio:   prev.Ratio,
		Deleted: true,
	}
}

// statChanged reports whether any of the comparison fields differ
// between the prior row and a freshly stat'd entry.
func statChanged(prev, next Entry) bool {
	return !prev.Mtime.Equal(next.Mtime) ||
		prev.Size != next.Size ||
		prev.UID != next.UID ||
		prev.GID != next.GID ||
		prev.Mode != next.Mode ||
		prev.NLink != next.NLink ||
		prev.LDest != next.LDest
}

// DiscoverAdded compares every directory the crawl/update visited against
// its actual current listing, recursing into genuinely new entries and
// inserting them. It must run after FastUpdate/InitialCrawl have populated
// Visited.
func (c *Crawler) DiscoverAdded(ctx context.Context) error {
	known, err := knownPathsByDir(ctx, c.Store.db)
	if err != nil {
		return err
	}

	batch := newPendingBatch(c.Store)
	for dir := range c.Visited {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if isSkippable(err) {
				continue
			}
			return errors.Wrap(err, errors.FSError)
		}
		knownHere := known[dir]
		for _, de := range entries {
			full := filepath.Join(dir, de.Name())
			if knownHere[full] {
				continue
			}
			info, err := os.Lstat(full)
			if err != nil {
				if isSkippable(err) {
					continue
				}
				return errors.Wrap(err, errors.FSError)
			}
			if info.IsDir() {
				if err := c.walk(ctx, full, func(e Entry) error {
					batch.add(e)
					return nil
				}); err != nil {
					return err
				}
				continue
			}
			entry := entryFromInfo(full, info)
			if info.Mode().IsRegular() {
				sha1hex, ratio, size, err := hashFile(ctx, full)
				if err != nil {
					return err
				}
				entry.SHA1 = sha1hex
				entry.Ratio = ratio
				entry.Size = size
			}
			batch.add(entry)
		}
	}
	return batch.flush(ctx)
}

func knownPathsByDir(ctx context.Context, db dbQuerier) (map[string]map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT path FROM fs_entries WHERE deleted = 0`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CommitFailed)
	}
	defer rows.Close()

	out := map[string]map[string]bool{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, errors.Wrap(err, errors.CommitFailed)
		}
		dir := filepath.Dir(path)
		if out[dir] == nil {
			out[dir] = map[string]bool{}
		}
		out[dir][path] = true
	}
	return out, nil
}
