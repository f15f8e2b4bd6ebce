// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package dropbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(
		"package:\n  stable_after: 30s\n  search_paths: [\".\"]\nauto_approve: [\"delete\"]\n"), 0644))
}

func TestFinderAddedRemovedChanged(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "box1", ".dropbox.yaml")
	writeConfig(t, cfgPath)

	f := NewFinder([]string{root}, 4, ".dropbox.yaml")
	added, removed, changed, err := f.Update(false)
	require.NoError(t, err)
	require.Equal(t, []string{cfgPath}, added)
	require.Empty(t, removed)
	require.Empty(t, changed)

	db, ok := f.Known(cfgPath)
	require.True(t, ok)
	require.Equal(t, 30.0, db.Settings.StableAfterDuration().Seconds())

	require.NoError(t, os.Remove(cfgPath))
	added, removed, changed, err = f.Update(false)
	require.NoError(t, err)
	require.Empty(t, added)
	require.Equal(t, []string{cfgPath}, removed)
	require.Empty(t, changed)
}

func TestDropboxByContainedPath(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "box1", ".dropbox.yaml")
	writeConfig(t, cfgPath)

	f := NewFinder([]string{root}, 4, ".dropbox.yaml")
	_, _, _, err := f.Update(false)
	require.NoError(t, err)

	d, err := f.DropboxByContainedPath(filepath.Join(root, "box1", "sub", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, cfgPath, d.ConfigPath)

	_, err = f.DropboxByContainedPath(filepath.Join(root, "elsewhere", "file.txt"))
	require.Error(t, err)
}
