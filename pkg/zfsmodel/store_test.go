// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsmodel

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "zfsmodel.sqlite")
	s, err := Open(dsn, logger.Config{LogLevel: "error"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSyncPoolsExactness(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	pools := []Pool{
		{Host: "h1", Name: "tank", Size: 100, Free: 50, Health: "ONLINE"},
		{Host: "h1", Name: "backup", Size: 200, Free: 150, Health: "ONLINE"},
	}
	require.NoError(t, s.SyncPools("h1", pools, now))

	p, err := s.GetPool("h1", "tank")
	require.NoError(t, err)
	require.Equal(t, int64(100), p.Size)
	require.WithinDuration(t, now, p.UpdatedAt, time.Second)

	// Second sync drops "backup" and adds "scratch": names must end up
	// exactly matching the new sample.
	pools2 := []Pool{
		{Host: "h1", Name: "tank", Size: 110, Free: 40, Health: "ONLINE"},
		{Host: "h1", Name: "scratch", Size: 10, Free: 10, Health: "ONLINE"},
	}
	require.NoError(t, s.SyncPools("h1", pools2, now.Add(time.Minute)))

	_, err = s.GetPool("h1", "backup")
	require.Error(t, err)
	_, err = s.GetPool("h1", "scratch")
	require.NoError(t, err)
	p, err = s.GetPool("h1", "tank")
	require.NoError(t, err)
	require.Equal(t, int64(110), p.Size)
}

func TestSyncPoolsRefusesEmptyDelete(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	require.NoError(t, s.SyncPools("h1", []Pool{{Host: "h1", Name: "tank"}}, now))
	require.NoError(t, s.SyncPools("h1", nil, now))

	p, err := s.GetPool("h1", "tank")
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestDatasetIsSnapshot(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	datasets := []Dataset{
		{Host: "h1", Name: "tank/fs", Type: "filesystem", Avail: 100},
		{Host: "h1", Name: "tank/fs@snap1", Type: "snapshot", AvailNull: true},
	}
	require.NoError(t, s.SyncDatasets("h1", datasets, now))

	fs, err := s.GetDataset("h1", "tank/fs")
	require.NoError(t, err)
	require.False(t, fs.IsSnapshot())

	snap, err := s.GetDataset("h1", "tank/fs@snap1")
	require.NoError(t, err)
	require.True(t, snap.IsSnapshot())

	snaps, err := s.Snapshots(fs)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
}
