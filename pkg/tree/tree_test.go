// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestPackagesDiscoversFileAndDirPackages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.txt"), "a")
	writeFile(t, filepath.Join(root, "pkgA", "a.jpg"), "b")
	writeFile(t, filepath.Join(root, "pkgA", "sub", "b.jpg"), "c")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	tr, err := Sample(root)
	require.NoError(t, err)
	defer tr.Release()

	pkgs := tr.Packages(false)
	names := map[string]bool{}
	for _, p := range pkgs {
		names[p.RelPath] = true
	}
	require.True(t, names["top.txt"])
	require.True(t, names["pkgA"])
	require.False(t, names["empty"])
}

func TestDiffCompletenessAndStability(t *testing.T) {
	root1 := t.TempDir()
	writeFile(t, filepath.Join(root1, "a.txt"), "same")
	writeFile(t, filepath.Join(root1, "removed.txt"), "gone")
	t1, err := Sample(root1)
	require.NoError(t, err)
	defer t1.Release()

	pkgs1 := t1.Packages(true)
	for _, p := range pkgs1 {
		p.StableSince = 100
	}

	root2 := root1
	require.NoError(t, os.Remove(filepath.Join(root2, "removed.txt")))
	writeFile(t, filepath.Join(root2, "added.txt"), "new")
	time.Sleep(10 * time.Millisecond)
	t2, err := Sample(root2)
	require.NoError(t, err)
	defer t2.Release()
	pkgs2 := t2.Packages(true)

	diff := Diff(pkgs1, pkgs2)
	require.Len(t, diff.Added, 1)
	require.Equal(t, "added.txt", diff.Added[0].RelPath)
	require.Len(t, diff.Removed, 1)
	require.Equal(t, "removed.txt", diff.Removed[0].RelPath)
	require.Len(t, diff.Unchanged, 1)
	require.Equal(t, int64(100), diff.Unchanged[0].RHS.StableSince)
}
