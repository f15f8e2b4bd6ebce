// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"

	"github.com/stratastor/dropboxd/internal/constants"
)

// scheduleDropboxUpdate is the "check.dropboxes_every" job: it re-walks the
// configured search roots and refreshes the Finder's known-dropbox set
// (added/removed/changed configs). It runs inline on the cron
// goroutine rather than a worker pool, since it only touches the Finder's
// own bookkeeping, not a dropbox's cached tree.
func (s *Scheduler) scheduleDropboxUpdate() {
	added, removed, changed, err := s.finder.Update(false)
	if err != nil {
		s.log.Error("dropbox discovery failed", "error", err)
		return
	}
	if len(added) > 0 || len(removed) > 0 || len(changed) > 0 {
		s.log.Info("dropbox set changed",
			"added", len(added), "removed", len(removed), "changed", len(changed))
	}
}

// schedulePackageChangeHandling is the "check.packages_every" job. It
// enqueues one package-diff task per known dropbox onto the update pool,
// subject to two gates: a per-dropbox busy flag (singleton update) and
// wholesale backpressure once the update queue already holds more than
// MAX_UPDATE_QUEUE_SCHEDULE_TASKS tasks.
func (s *Scheduler) schedulePackageChangeHandling() {
	if len(s.updateQueue) > constants.MaxUpdateQueueScheduleTasks {
		s.log.Warn("update queue over backpressure threshold, skipping package-change enqueue this cycle",
			"queued", len(s.updateQueue))
		return
	}

	for _, d := range s.finder.All() {
		if !d.TryBeginUpdate() {
			continue
		}
		dropbox := d
		s.enqueue(s.updateQueue, func(ctx context.Context) {
			defer dropbox.EndUpdate()
			s.handlePackageChange(ctx, dropbox)
		}, "update")
	}
}

// scheduleTransactionCheck is the "check.transactions_every" job. It is
// always enqueued, onto the operation pool since it may itself push
// ready-to-run operation tasks.
func (s *Scheduler) scheduleTransactionCheck() {
	s.enqueue(s.operationQueue, func(ctx context.Context) {
		s.handleTransactionCheck(ctx)
	}, "operation")
}
