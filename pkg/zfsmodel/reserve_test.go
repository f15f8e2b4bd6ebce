// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsmodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistributeReservationsProportional(t *testing.T) {
	ds := []*Dataset{
		{Host: "h1", Name: "tank/a", Used: 10, Avail: 90, Properties: map[string]string{"zfs_priority": "1"}},
		{Host: "h1", Name: "tank/b", Used: 20, Avail: 180, Properties: map[string]string{"zfs_priority": "3"}},
	}
	allocs, err := DistributeReservations(ds, 400, ModeQuota)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	require.Equal(t, int64(100), allocs[0].Reserve) // 400 * 1/4
	require.Equal(t, int64(300), allocs[1].Reserve) // 400 * 3/4
	require.Equal(t, int64(90), allocs[0].Remaining)
}

func TestDistributeReservationsZeroPrioritiesRejected(t *testing.T) {
	ds := []*Dataset{
		{Host: "h1", Name: "tank/a", Properties: map[string]string{"zfs_priority": "0"}},
	}
	_, err := DistributeReservations(ds, 100, ModeQuota)
	require.Error(t, err)
}

func TestDistributeReservationsEmptyInput(t *testing.T) {
	allocs, err := DistributeReservations(nil, 100, ModeQuota)
	require.NoError(t, err)
	require.Nil(t, allocs)
}
