// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "txn.sqlite")
	store, err := Open(dsn, logger.Config{LogLevel: "error"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	r := &Record{
		ID: "t1", Host: "h1", TypeName: "delete",
		InPackageRef: "/root/pkg1", SpooledAt: time.Now(),
	}
	require.NoError(t, store.Put(r))

	got, err := store.Get("t1")
	require.NoError(t, err)
	require.Equal(t, "h1", got.Host)
	require.Nil(t, got.PercentDone)
	require.Nil(t, got.StartedAt)
}

func TestUnfinishedUnqueuedExcludesQueued(t *testing.T) {
	store := newTestStore(t)
	pct := 10.0
	queued := &Record{ID: "q1", InPackageRef: "/p", TypeName: "move", SpooledAt: time.Now(), PercentDone: &pct}
	unqueued := &Record{ID: "u1", InPackageRef: "/p", TypeName: "move", SpooledAt: time.Now()}
	require.NoError(t, store.Put(queued))
	require.NoError(t, store.Put(unqueued))

	got, err := store.UnfinishedUnqueued("/p", "move")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "u1", got[0].ID)
}

func TestTransactionApplyPersistsViaSink(t *testing.T) {
	store := newTestStore(t)
	record := &Record{ID: "t2", InPackageRef: "/pkg", TypeName: "delete", SpooledAt: time.Now()}
	require.NoError(t, store.Put(record))

	tr, err := New(record, nil, store, logger.Config{LogLevel: "error"})
	require.NoError(t, err)

	require.NoError(t, tr.Apply(context.Background(), nil))

	got, err := store.Get("t2")
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.PercentDone)
	require.Equal(t, 100.0, *got.PercentDone)
}

func TestAddFilesAndPackageRoundtrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AddFiles("t3", []TransactionFile{
		{TransactionID: "t3", Path: "/pkg/a", Size: 10, UID: 1, GID: 1, Mode: 0644},
		{TransactionID: "t3", Path: "/pkg/b", Size: 20, UID: 1, GID: 1, Mode: 0644},
	}))

	require.NoError(t, store.PutPackage(&SQLPackage{
		Host: "h1", RootPath: "/root", PackagePath: "/root/pkg", ManagedAt: time.Now(), StableSince: 123,
	}))
	got, err := store.GetPackage("h1", "/root", "/root/pkg")
	require.NoError(t, err)
	require.Equal(t, int64(123), got.StableSince)
	require.Nil(t, got.UnmanagedAt)
}
