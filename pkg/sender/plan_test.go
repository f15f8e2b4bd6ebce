// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"

	"github.com/stratastor/dropboxd/pkg/zfsmodel"
)

func newTestStore(t *testing.T) *zfsmodel.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sender.sqlite")
	store, err := zfsmodel.Open(dsn, logger.Config{LogLevel: "error"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPool(t *testing.T, store *zfsmodel.Store, host, name string, size, free, alloc int64) {
	t.Helper()
	require.NoError(t, store.SyncPools(host, []zfsmodel.Pool{
		{Host: host, Name: name, Size: size, Free: free, Alloc: alloc, Health: "ONLINE"},
	}, time.Now()))
}

func seedDatasets(t *testing.T, store *zfsmodel.Store, host string, ds []zfsmodel.Dataset) {
	t.Helper()
	require.NoError(t, store.SyncDatasets(host, ds, time.Now()))
}

// TestComputeRollbackIffDropped asserts the plan calls for `zfs rollback -r`
// exactly when the destination has snapshots newer than the chosen common
// snapshot, never otherwise.
func TestComputeRollbackIffDropped(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)
	seedPool(t, store, "dst", "tank", 1000, 500, 500)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s1", AvailNull: true, Creation: base, UsedSnap: 10, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s2", AvailNull: true, Creation: base.Add(time.Hour), UsedSnap: 10, CompressionRatio: 1},
	})
	seedDatasets(t, store, "dst", []zfsmodel.Dataset{
		{Host: "dst", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "dst", Name: "tank/fs@s1", AvailNull: true, Creation: base, UsedSnap: 10, CompressionRatio: 1},
	})

	p := New(store)
	src, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	plan, err := p.Compute(src, "dst", "tank/fs", "")
	require.NoError(t, err)
	require.Equal(t, "s1", plan.SsFrom)
	require.Zero(t, plan.DestSnapshotsDropped)
	require.Len(t, plan.SnapshotsToSend, 1)

	script, err := plan.Script()
	require.NoError(t, err)
	require.NotContains(t, script, "zfs rollback")

	// Now give the destination a snapshot newer than the common one: s1 is
	// still common, but the destination also diverged with its own "stray"
	// snapshot taken after s1.
	seedDatasets(t, store, "dst", []zfsmodel.Dataset{
		{Host: "dst", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "dst", Name: "tank/fs@s1", AvailNull: true, Creation: base, UsedSnap: 10, CompressionRatio: 1},
		{Host: "dst", Name: "tank/fs@stray", AvailNull: true, Creation: base.Add(30 * time.Minute), UsedSnap: 5, CompressionRatio: 1},
	})

	plan2, err := p.Compute(src, "dst", "tank/fs", "")
	require.NoError(t, err)
	require.Equal(t, 1, plan2.DestSnapshotsDropped)

	script2, err := plan2.Script()
	require.NoError(t, err)
	require.Contains(t, script2, "zfs rollback -r")
}

func TestComputeNoCommonSnapshot(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)
	seedPool(t, store, "dst", "tank", 1000, 500, 500)

	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s1", AvailNull: true, Creation: time.Now(), UsedSnap: 10, CompressionRatio: 1},
	})
	seedDatasets(t, store, "dst", []zfsmodel.Dataset{
		{Host: "dst", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "dst", Name: "tank/fs@unrelated", AvailNull: true, Creation: time.Now(), UsedSnap: 10, CompressionRatio: 1},
	})

	p := New(store)
	src, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	plan, err := p.Compute(src, "dst", "tank/fs", "")
	require.NoError(t, err)
	require.True(t, plan.NoCommonSnapshot)

	script, err := plan.Script()
	require.NoError(t, err)
	require.Contains(t, script, "refused: no common snapshot")
}

func TestComputeNothingToSend(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)
	seedPool(t, store, "dst", "tank", 1000, 500, 500)

	now := time.Now()
	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s1", AvailNull: true, Creation: now, UsedSnap: 10, CompressionRatio: 1},
	})
	seedDatasets(t, store, "dst", []zfsmodel.Dataset{
		{Host: "dst", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "dst", Name: "tank/fs@s1", AvailNull: true, Creation: now, UsedSnap: 10, CompressionRatio: 1},
	})

	p := New(store)
	src, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	plan, err := p.Compute(src, "dst", "tank/fs", "")
	require.NoError(t, err)
	require.True(t, plan.NothingToSend)

	script, err := plan.Script()
	require.NoError(t, err)
	require.Contains(t, script, "nothing to send")
}

func TestComputeFullSendWhenDestMissing(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)

	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", Used: 100, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s1", AvailNull: true, Creation: time.Now(), UsedSnap: 10, CompressionRatio: 1},
	})

	p := New(store)
	src, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	plan, err := p.Compute(src, "dst", "tank/fs", "")
	require.NoError(t, err)
	require.Empty(t, plan.SsFrom)
	require.Len(t, plan.SnapshotsToSend, 1)

	script, err := plan.Script()
	require.NoError(t, err)
	require.Contains(t, script, "zfs send")
	require.NotContains(t, script, "-I")
}
