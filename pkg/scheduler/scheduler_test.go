// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"

	"github.com/stratastor/dropboxd/pkg/dropbox"
	"github.com/stratastor/dropboxd/pkg/txn"
)

const testDropboxYAML = `package:
  stable_after: 0s
  search_paths: ["drop"]
update_packages_every: 1ms
transactions:
  delete:
    after_being_stable_for: 0s
`

func newTestScheduler(t *testing.T, root string) (*Scheduler, *dropbox.Dropbox) {
	t.Helper()

	cfgPath := filepath.Join(root, ".dropbox.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testDropboxYAML), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drop"), 0755))

	finder := dropbox.NewFinder([]string{root}, 2, ".dropbox.yaml")
	added, _, _, err := finder.Update(false)
	require.NoError(t, err)
	require.Len(t, added, 1)

	s, err := New(Config{
		Host:      "testhost",
		DSN:       filepath.Join(t.TempDir(), "scheduler.sqlite"),
		LogConfig: logger.Config{LogLevel: "error"},
	}, finder)
	require.NoError(t, err)

	d, ok := finder.Known(cfgPath)
	require.True(t, ok)
	return s, d
}

func TestPackageChangeEnqueuesPendingTransaction(t *testing.T) {
	root := t.TempDir()
	s, d := newTestScheduler(t, root)
	ctx := context.Background()

	// First pass establishes the baseline sample of the empty drop dir.
	s.handlePackageChange(ctx, d)

	require.NoError(t, os.WriteFile(filepath.Join(root, "drop", "pkg.bin"), []byte("payload"), 0644))
	time.Sleep(5 * time.Millisecond)

	s.handlePackageChange(ctx, d)

	store, err := s.openStore()
	require.NoError(t, err)
	defer store.Close()

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "delete", records[0].TypeName)
	require.Equal(t, txn.StatusPendingApproval, txn.DeriveStatus(records[0]))

	// A further cycle with an unchanged package must not create a second
	// transaction while the first is still unfinished and unqueued.
	time.Sleep(5 * time.Millisecond)
	s.handlePackageChange(ctx, d)

	records, err = store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestChangedPackageCancelsUnqueuedTransaction(t *testing.T) {
	root := t.TempDir()
	s, d := newTestScheduler(t, root)
	ctx := context.Background()

	pkgPath := filepath.Join(root, "drop", "pkg.bin")

	s.handlePackageChange(ctx, d)
	require.NoError(t, os.WriteFile(pkgPath, []byte("v1"), 0644))
	time.Sleep(5 * time.Millisecond)
	s.handlePackageChange(ctx, d)

	// Modify the package contents: the pending transaction was created for
	// the old contents and must be canceled, then a fresh one enqueued on
	// the next stable cycle.
	require.NoError(t, os.WriteFile(pkgPath, []byte("v2 longer"), 0644))
	time.Sleep(5 * time.Millisecond)
	s.handlePackageChange(ctx, d)

	store, err := s.openStore()
	require.NoError(t, err)
	defer store.Close()

	records, err := store.List()
	require.NoError(t, err)

	var canceled int
	for _, r := range records {
		if txn.DeriveStatus(r) == txn.StatusCanceled {
			canceled++
		}
	}
	require.Equal(t, 1, canceled)
}

func TestBackpressureSkipsPackageChangeCycle(t *testing.T) {
	root := t.TempDir()
	s, _ := newTestScheduler(t, root)

	// Saturate the update queue past the backpressure threshold with inert
	// tasks; the cycle must then enqueue nothing new.
	for i := 0; i < cap(s.updateQueue); i++ {
		select {
		case s.updateQueue <- func(ctx context.Context) {}:
		default:
		}
	}
	before := len(s.updateQueue)
	s.schedulePackageChangeHandling()
	require.Equal(t, before, len(s.updateQueue))
}
