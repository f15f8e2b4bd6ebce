// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundtrip(t *testing.T) {
	t.Run("S3 snapshot URL", func(t *testing.T) {
		u, err := Parse("zfs://h1/poolA/fs/sub@snap?sync=replicate")
		require.NoError(t, err)

		assert.Equal(t, "poolA/fs/sub@snap", u.Name())
		assert.Equal(t, "snap", u.SnapshotName())
		assert.Equal(t, "replicate", u.Query.Sync)

		parent := u.Parent()
		assert.Equal(t, "zfs://h1/poolA/fs/sub/", parent.String())
	})

	t.Run("bare pool vs pool-filesystem", func(t *testing.T) {
		pool, err := Parse("zfs://h1/poolA")
		require.NoError(t, err)
		assert.False(t, pool.IsPoolFilesystem())

		poolFS, err := Parse("zfs://h1/poolA/")
		require.NoError(t, err)
		assert.True(t, poolFS.IsPoolFilesystem())
	})

	t.Run("children_only flag", func(t *testing.T) {
		u, err := Parse("zfs://h1/poolA/fs?children_only=1")
		require.NoError(t, err)
		assert.True(t, u.Query.ChildrenOnly)
	})

	t.Run("invalid sync value rejected", func(t *testing.T) {
		_, err := Parse("zfs://h1/poolA/fs?sync=bogus")
		require.Error(t, err)
	})

	t.Run("missing host rejected", func(t *testing.T) {
		_, err := Parse("zfs:///poolA")
		require.Error(t, err)
	})
}

func TestParentOfNestedFilesystem(t *testing.T) {
	u, err := Parse("zfs://h1/poolA/fs/sub/leaf")
	require.NoError(t, err)

	parent := u.Parent()
	assert.Equal(t, "zfs://h1/poolA/fs/sub/", parent.String())

	grandparent := parent.Parent()
	assert.Equal(t, "zfs://h1/poolA/fs/", grandparent.String())

	root := grandparent.Parent()
	assert.Equal(t, "zfs://h1/poolA/", root.String())
	assert.True(t, root.IsPoolFilesystem())
}
