// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"time"

	"github.com/stratastor/dropboxd/pkg/txn"
)

// enqueueOperation pushes an operation-pool task that loads record fresh,
// re-resolves the owning dropbox's plugin config, instantiates the
// plugin's Operations, and runs the Transaction. The task opens its own
// Store when it actually executes; it must not reuse the Store the
// caller used to persist record, which closes when the calling task
// returns.
func (s *Scheduler) enqueueOperation(recordID, pluginName string, pv txn.PackageView) {
	s.enqueue(s.operationQueue, func(ctx context.Context) {
		s.runOperation(ctx, recordID, pluginName, pv)
	}, "operation")
}

func (s *Scheduler) runOperation(ctx context.Context, recordID, pluginName string, pv txn.PackageView) {
	store, err := s.openStore()
	if err != nil {
		s.log.Error("failed to open store for operation task", "error", err)
		return
	}
	defer store.Close()

	record, err := store.Get(recordID)
	if err != nil {
		s.log.Error("operation task could not load transaction record", "id", recordID, "error", err)
		return
	}

	plugin, err := txn.Lookup(pluginName)
	if err != nil {
		s.log.Error("operation task: unknown transaction plugin", "type", pluginName, "error", err)
		return
	}
	plugin = s.withTransferHistory(store, plugin, record.InPackageRef)

	cfg := s.resolvePluginConfig(pv.AbsPath, pluginName)
	ops, err := plugin.Operations(pv, cfg)
	if err != nil {
		record.Error = err.Error()
		now := time.Now()
		record.FinishedAt = &now
		if putErr := store.Put(record); putErr != nil {
			s.log.Error("failed to persist operation-build failure", "id", record.ID, "error", putErr)
		}
		return
	}

	t, err := txn.New(record, ops, store, s.cfg.LogConfig)
	if err != nil {
		s.log.Error("failed to build transaction", "id", record.ID, "error", err)
		return
	}

	addFiles := func(r *txn.Record) error {
		files, err := txn.FilesUnder(pv.AbsPath)
		if err != nil {
			return nil
		}
		return store.AddFiles(r.ID, files)
	}

	if err := t.Apply(ctx, addFiles); err != nil {
		s.log.Warn("transaction failed", "id", record.ID, "type", pluginName, "error", err)
	}
}
