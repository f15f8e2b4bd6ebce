// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package bundler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractIsolatesVersionGroup(t *testing.T) {
	prefix, version, ok := Extract(nil, "/proj/ab_v046/jpg/ab_v046.0103.jpg")
	require.True(t, ok)
	require.Equal(t, "046", version)
	require.Equal(t, "/proj/ab_v", prefix)
}

func TestExtractNoMatch(t *testing.T) {
	_, _, ok := Extract(nil, "/proj/readme.txt")
	require.False(t, ok)
}

func TestBuilderPrefixAdjacency(t *testing.T) {
	b := NewBuilder(nil)
	now := time.Now()
	b.Add(Entry{Path: "/proj/ab_v001/a.jpg", Meta: FileMeta{Size: 10, Created: now}})
	b.Add(Entry{Path: "/proj/ab_v002/a.jpg", Meta: FileMeta{Size: 10, Created: now}})
	// different prefix entirely, single version -> pruned
	b.Add(Entry{Path: "/other/cd_v001/a.jpg", Meta: FileMeta{Size: 10, Created: now}})

	raw := b.Raw()
	require.Contains(t, raw, "/proj/ab_v")
	require.Len(t, raw["/proj/ab_v"], 2)
	require.NotContains(t, raw, "/other/cd_v")
}

func TestRebuildAscendingOrder(t *testing.T) {
	b := NewBuilder(nil)
	now := time.Now()
	b.Add(Entry{Path: "/proj/ab_v010/a.jpg", Meta: FileMeta{Size: 10, Created: now}})
	b.Add(Entry{Path: "/proj/ab_v002/a.jpg", Meta: FileMeta{Size: 10, Created: now}})

	lists := Rebuild(b.Raw())
	l, ok := lists["/proj/ab_v"]
	require.True(t, ok)
	require.Len(t, l.Bundles, 2)
	require.Equal(t, "002", l.Bundles[0].Version)
	require.Equal(t, "010", l.Bundles[1].Version)
}

func TestRebuildKeepLatestN(t *testing.T) {
	b := NewBuilder(nil)
	now := time.Now()
	for _, v := range []string{"001", "002", "003"} {
		b.Add(Entry{Path: "/proj/ab_v" + v + "/a.jpg", Meta: FileMeta{Size: 10, Created: now}})
	}
	lists := Rebuild(b.Raw(), WithKeepLatestN(1))
	l := lists["/proj/ab_v"]
	require.Len(t, l.Removed(), 2)
	require.False(t, l.Bundles[2].Removal)
}
