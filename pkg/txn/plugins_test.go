// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderDateTemplate(t *testing.T) {
	tm := time.Date(2026, 3, 5, 9, 7, 0, 0, time.UTC)
	out := RenderDateTemplate("/archive/Y/M/D/H/MIN", tm)
	require.Equal(t, "/archive/2026/03/05/09/07", out)
}

func TestDeletePluginCanEnqueue(t *testing.T) {
	p := DeletePlugin{}
	cfg := map[string]any{"after_being_stable_for": 30 * time.Second}
	pkg := PackageView{AbsPath: "/x", StableSince: time.Now().Add(-time.Minute).Unix()}
	require.True(t, p.CanEnqueue(pkg, nil, cfg))

	fresh := PackageView{AbsPath: "/x", StableSince: time.Now().Unix()}
	require.False(t, p.CanEnqueue(fresh, nil, cfg))
}

// TestTransferCanEnqueueGuard asserts a completed copy
// transaction for the same in_package_stable_since blocks re-enqueue; a
// changed stable_since unblocks it.
func TestTransferCanEnqueueGuard(t *testing.T) {
	stableSince := int64(1000)
	p := TransferPlugin{History: func(pkg PackageView, cfg map[string]any) TransferHistory {
		return TransferHistory{CopySucceededForStable: map[int64]bool{1000: true}}
	}}
	cfg := map[string]any{"mode": "copy", "destination": "/dst"}

	pkg := PackageView{AbsPath: "/src", StableSince: stableSince}
	require.False(t, p.CanEnqueue(pkg, nil, cfg))

	pkg2 := PackageView{AbsPath: "/src", StableSince: 2000}
	require.True(t, p.CanEnqueue(pkg2, nil, cfg))
}

func TestRegistryLookup(t *testing.T) {
	_, err := Lookup("delete")
	require.NoError(t, err)
	_, err = Lookup("move")
	require.NoError(t, err)
	_, err = Lookup("transfer")
	require.NoError(t, err)
	_, err = Lookup("nonexistent")
	require.Error(t, err)
}
