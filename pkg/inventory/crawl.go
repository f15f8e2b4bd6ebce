// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// Crawler drives the initial full crawl and subsequent fast-update passes
// against a Store.
type Crawler struct {
	Store *Store

	// Visited accumulates every directory path the crawl/update touched,
	// consumed by DiscoverAdded to find entries that appeared mid-run.
	Visited map[string]bool
}

// NewCrawler creates a Crawler bound to store.
func NewCrawler(store *Store) *Crawler {
	return &Crawler{Store: store, Visited: map[string]bool{}}
}

func isSkippable(err error) bool {
	return os.IsNotExist(err) || os.IsPermission(err)
}

func entryFromInfo(path string, info os.FileInfo) Entry {
	uid, gid, nblocks, nlink, ctime, atime, _ := platformStat(info)
	ldest := ""
	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			ldest = target
		}
	}
	return Entry{
		Path:    path,
		Size:    info.Size(),
		Mtime:   info.ModTime(),
		Ctime:   ctime,
		Atime:   atime,
		UID:     uid,
		GID:     gid,
		NBlocks: nblocks,
		NLink:   nlink,
		Mode:    uint32(info.Mode()),
		LDest:   ldest,
	}
}

// InitialCrawl walks root depth-first, streaming every regular file's
// content through SHA-1 + the LZ4-ratio estimator, and commits rows in
// batches bounded by row count or elapsed time. Symlinks are recorded
// without hashing; directories are descended into but get no row.
func (c *Crawler) InitialCrawl(ctx context.Context, root string) error {
	batch := newPendingBatch(c.Store)
	deadline := time.Now().Add(c.Store.CommitTimeBudget)

	err := c.walk(ctx, root, func(e Entry) error {
		batch.add(e)
		if len(batch.entries) >= c.Store.CommitRowBatch || time.Now().After(deadline) {
			if err := batch.flush(ctx); err != nil {
				return err
			}
			deadline = time.Now().Add(c.Store.CommitTimeBudget)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return batch.flush(ctx)
}

func (c *Crawler) walk(ctx context.Context, root string, emit func(Entry) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.Visited[root] = true

	entries, err := os.ReadDir(root)
	if err != nil {
		if isSkippable(err) {
			return nil
		}
		return errors.Wrap(err, errors.FSError)
	}

	for _, de := range entries {
		full := filepath.Join(root, de.Name())
		info, err := os.Lstat(full)
		if err != nil {
			if isSkippable(err) {
				continue
			}
			return errors.Wrap(err, errors.FSError)
		}

		if info.IsDir() {
			if err := c.walk(ctx, full, emit); err != nil {
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
		if err := emit(entry); err != nil {
			return err
		}
	}
	return nil
}
