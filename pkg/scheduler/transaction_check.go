// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"

	"github.com/stratastor/dropboxd/pkg/txn"
)

// handleTransactionCheck implements the transaction-check task: scan
// for transactions pending authorization, resolve their token, and either
// queue them for the operation pool (OK/NOT_NEEDED), reset them to pending
// (FAILURE), cancel them (REJECTED), or leave them (WAIT).
func (s *Scheduler) handleTransactionCheck(ctx context.Context) {
	store, err := s.openStore()
	if err != nil {
		s.log.Error("failed to open store for transaction-check task", "error", err)
		return
	}
	defer store.Close()

	records, err := store.PendingAuthorization()
	if err != nil {
		s.log.Error("transaction-check scan failed", "error", err)
		return
	}

	for _, r := range records {
		token, err := s.authz.Token(ctx, r, s.cfg.PrivilegedGroup)
		if err != nil {
			s.log.Warn("authorization resolution failed", "id", r.ID, "error", err)
		}

		switch token {
		case txn.TokenOK, txn.TokenNotNeeded:
			percent := 0.0
			r.PercentDone = &percent
			if err := store.Put(r); err != nil {
				s.log.Error("failed to mark transaction queued", "id", r.ID, "error", err)
				continue
			}
			pv := txn.PackageView{AbsPath: r.InPackageRef, StableSince: r.InPackageStableSince}
			s.enqueueOperation(r.ID, r.TypeName, pv)
		case txn.TokenFailure:
			r.ApprovedByLogin = ""
			if err := store.Put(r); err != nil {
				s.log.Error("failed to reset transaction to pending approval", "id", r.ID, "error", err)
			}
		case txn.TokenRejected:
			txn.Cancel(r, "authorization rejected")
			if err := store.Put(r); err != nil {
				s.log.Error("failed to persist rejected transaction", "id", r.ID, "error", err)
			}
		case txn.TokenWait:
			// nothing to do, still awaiting approval
		}
	}
}
