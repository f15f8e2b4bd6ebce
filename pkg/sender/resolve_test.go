// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratastor/dropboxd/pkg/zfsmodel"
)

func TestResolvePropertyFailsWhenInherited(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)

	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", CompressionRatio: 1,
			Properties: map[string]string{"zfs_receive_url": "zfs://dst/tank/fs"}},
		{Host: "src", Name: "tank/fs/child", Type: "filesystem", CompressionRatio: 1,
			Properties: map[string]string{"zfs_receive_url": "zfs://dst/tank/fs"}},
	})

	p := New(store)
	child, err := store.GetDataset("src", "tank/fs/child")
	require.NoError(t, err)

	_, err = p.ResolveProperty(child)
	require.Error(t, err)
}

func TestResolvePropertyOK(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)

	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", CompressionRatio: 1,
			Properties: map[string]string{"zfs_receive_url": "zfs://dst/tank/fs"}},
	})

	p := New(store)
	fs, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	dest, err := p.ResolveProperty(fs)
	require.NoError(t, err)
	require.Equal(t, "dst", dest.Host)
	require.Equal(t, "tank/fs", dest.Name)
}

func TestCandidatesBasenameAndPoolCapacity(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)
	seedPool(t, store, "h2", "pool2", 1000, 900, 100)
	seedPool(t, store, "h3", "pool3", 1000, 1, 999)

	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", Used: 50, CompressionRatio: 1},
	})
	seedDatasets(t, store, "h2", []zfsmodel.Dataset{
		{Host: "h2", Name: "pool2/fs", Type: "filesystem", Avail: 800, CompressionRatio: 1},
	})

	p := New(store)
	src, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	candidates, err := p.Candidates(src)
	require.NoError(t, err)

	var names []string
	for _, c := range candidates {
		names = append(names, c.Host+"/"+c.Name)
	}
	require.Contains(t, names, "h2/pool2/fs")
	require.NotContains(t, names, "h3/pool3/fs")
}

func TestResolveConfiguredChildrenOnly(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)

	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", CompressionRatio: 1},
		{Host: "src", Name: "tank/fs/a", Type: "filesystem", CompressionRatio: 1,
			Properties: map[string]string{"zfs_receive_url": "zfs://dst/tank/a"}},
		{Host: "src", Name: "tank/fs/a/nested", Type: "filesystem", CompressionRatio: 1,
			Properties: map[string]string{"zfs_receive_url": "zfs://dst/tank/nested"}},
	})

	p := New(store)
	root, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	all, err := p.ResolveConfigured(root, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	childrenOnly, err := p.ResolveConfigured(root, true)
	require.NoError(t, err)
	require.Len(t, childrenOnly, 1)
	require.Equal(t, "tank/a", childrenOnly[0].Name)
}

func TestResolveSearchPicksSmallestSend(t *testing.T) {
	store := newTestStore(t)
	seedPool(t, store, "src", "tank", 1000, 500, 500)
	seedPool(t, store, "h2", "tank", 1000, 500, 500)
	seedPool(t, store, "h3", "tank", 1000, 500, 500)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedDatasets(t, store, "src", []zfsmodel.Dataset{
		{Host: "src", Name: "tank/fs", Type: "filesystem", Used: 10, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s1", AvailNull: true, Creation: base, UsedSnap: 10, CompressionRatio: 1},
		{Host: "src", Name: "tank/fs@s2", AvailNull: true, Creation: base.Add(time.Hour), UsedSnap: 10, CompressionRatio: 1},
	})
	// h2 shares the latest snapshot (cheap incremental); h3 shares nothing
	// (expensive full send).
	seedDatasets(t, store, "h2", []zfsmodel.Dataset{
		{Host: "h2", Name: "tank/fs", Type: "filesystem", Avail: 400, CompressionRatio: 1},
		{Host: "h2", Name: "tank/fs@s2", AvailNull: true, Creation: base.Add(time.Hour), UsedSnap: 10, CompressionRatio: 1},
	})
	seedDatasets(t, store, "h3", []zfsmodel.Dataset{
		{Host: "h3", Name: "tank/fs", Type: "filesystem", Avail: 450, CompressionRatio: 1},
	})

	p := New(store)
	src, err := store.GetDataset("src", "tank/fs")
	require.NoError(t, err)

	dest, err := p.ResolveSearch(src)
	require.NoError(t, err)
	require.Equal(t, "h2", dest.Host)
}
