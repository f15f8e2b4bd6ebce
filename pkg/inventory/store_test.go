// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "inventory.sqlite")
	s, err := Open(dsn, logger.Config{LogLevel: "error"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitialCrawlHashesFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("nested"), 0644))

	s := newTestStore(t)
	c := NewCrawler(s)
	require.NoError(t, c.InitialCrawl(context.Background(), root))

	window, err := latestPerPathWindow(context.Background(), s.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 2)
	for _, e := range window {
		require.NotEmpty(t, e.SHA1)
	}
}

func TestFastUpdateDetectsDeletion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	s := newTestStore(t)
	c := NewCrawler(s)
	require.NoError(t, c.InitialCrawl(context.Background(), root))

	require.NoError(t, os.Remove(path))

	c2 := NewCrawler(s)
	require.NoError(t, c2.FastUpdate(context.Background()))

	window, err := latestPerPathWindow(context.Background(), s.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.True(t, window[0].Deleted)
}

func TestFastUpdateSkipsRehashWhenSizeUnchanged(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	s := newTestStore(t)
	c := NewCrawler(s)
	require.NoError(t, c.InitialCrawl(context.Background(), root))

	window, err := latestPerPathWindow(context.Background(), s.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 1)
	originalSHA1 := window[0].SHA1

	// touch mtime without changing size/content.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	c2 := NewCrawler(s)
	require.NoError(t, c2.FastUpdate(context.Background()))

	window, err = latestPerPathWindow(context.Background(), s.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, originalSHA1, window[0].SHA1)
}

func TestRemoveDuplicatesKeepsNewestID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, insertEntries(ctx, s.db, []Entry{
		{Path: "/a", SHA1: "old"},
		{Path: "/a", SHA1: "new"},
		{Path: "/b", SHA1: "only"},
	}))

	require.NoError(t, s.RemoveDuplicates(ctx))

	window, err := latestPerPathWindow(ctx, s.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 2)
	for _, e := range window {
		if e.Path == "/a" {
			require.Equal(t, "new", e.SHA1)
		}
	}
}

func TestMergeFromImportsWithFreshIDs(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, insertEntries(ctx, src.db, []Entry{
		{Path: "/x", SHA1: "x1"},
		{Path: "/y", SHA1: "y1"},
	}))

	dst := newTestStore(t)
	require.NoError(t, dst.MergeFrom(ctx, src.db))

	window, err := latestPerPathWindow(ctx, dst.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 2)
}

func TestDiscoverAddedFindsNewEntry(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))

	s := newTestStore(t)
	c := NewCrawler(s)
	require.NoError(t, c.InitialCrawl(context.Background(), root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("world"), 0644))

	require.NoError(t, c.DiscoverAdded(context.Background()))

	window, err := latestPerPathWindow(context.Background(), s.db, FastUpdateWindow, 0)
	require.NoError(t, err)
	require.Len(t, window, 2)
}
