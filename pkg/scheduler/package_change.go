// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/stratastor/dropboxd/pkg/dropbox"
	"github.com/stratastor/dropboxd/pkg/tree"
	"github.com/stratastor/dropboxd/pkg/txn"
)

// handlePackageChange is the update-pool task body for one dropbox: it
// respects the dropbox's own update_packages_every, then re-samples and
// diffs every search path.
func (s *Scheduler) handlePackageChange(ctx context.Context, d *dropbox.Dropbox) {
	interval := d.Settings.UpdateInterval()
	if interval == 0 {
		interval = s.cfg.CheckPackagesEvery
	}
	if !d.LastUpdate().IsZero() && time.Since(d.LastUpdate()) < interval {
		return
	}

	store, err := s.openStore()
	if err != nil {
		s.log.Error("failed to open store for package-change task", "error", err)
		return
	}
	defer store.Close()

	for _, searchPath := range d.ResolvedSearchPaths() {
		s.diffSearchPath(ctx, d, store, searchPath)
	}
}

func (s *Scheduler) diffSearchPath(ctx context.Context, d *dropbox.Dropbox, store *txn.Store, searchPath string) {
	newTree, err := tree.Sample(searchPath)
	if err != nil {
		s.log.Error("tree sample failed", "path", searchPath, "error", err)
		return
	}

	prev, hadPrev := d.LastSample(searchPath)
	var lhsPackages []*tree.Package
	if hadPrev {
		lhsPackages = prev.Packages(d.Settings.OnePackagePerFile)
	}
	d.SetLastSample(searchPath, newTree)

	if !hadPrev {
		return // first sample establishes the baseline only, no diff yet
	}

	rhsPackages := newTree.Packages(d.Settings.OnePackagePerFile)
	diff := tree.Diff(lhsPackages, rhsPackages)

	host := s.cfg.Host
	sampledAt := newTree.SampledAt.Unix()

	for _, pkg := range diff.Added {
		s.handleAdded(ctx, d, store, host, searchPath, pkg, sampledAt)
	}
	for _, pkg := range diff.Removed {
		s.handleRemoved(store, pkg)
	}
	for _, pair := range diff.Changed {
		s.handleChanged(ctx, d, store, host, searchPath, pair, sampledAt)
	}
	for _, pair := range diff.Unchanged {
		s.maybeEnqueueTransaction(ctx, d, store, host, searchPath, pair.RHS)
	}
}

// handleAdded upserts a freshly discovered package's SQLPackage row,
// preserving a DB stable_since if it is newer than the sample would
// assign, then runs the possibly-stable handler.
func (s *Scheduler) handleAdded(ctx context.Context, d *dropbox.Dropbox, store *txn.Store, host, root string, pkg *tree.Package, sampledAt int64) {
	pkg.StableSince = sampledAt
	if existing, err := store.GetPackage(host, root, pkg.RelPath); err == nil && existing.StableSince > pkg.StableSince {
		pkg.StableSince = existing.StableSince
	}

	p := &txn.SQLPackage{
		Host: host, RootPath: root, PackagePath: pkg.RelPath,
		ManagedAt: time.Now(), StableSince: pkg.StableSince,
	}
	if err := store.PutPackage(p); err != nil {
		s.log.Error("failed to persist added package", "path", pkg.AbsPath(), "error", err)
		return
	}
	s.maybeEnqueueTransaction(ctx, d, store, host, root, pkg)
}

// handleRemoved marks a package's SQLPackage as unmanaged and cancels its
// unstarted transactions, leaving running ones to self-manage.
func (s *Scheduler) handleRemoved(store *txn.Store, pkg *tree.Package) {
	ref := pkg.AbsPath()
	sp, err := store.GetPackage(s.cfg.Host, pkg.Root, pkg.RelPath)
	if err == nil {
		now := time.Now()
		sp.UnmanagedAt = &now
		if err := store.PutPackage(sp); err != nil {
			s.log.Error("failed to mark package unmanaged", "path", ref, "error", err)
		}
	}

	records, err := store.UnstartedByInPackageRef(ref)
	if err != nil {
		s.log.Error("failed to look up transactions for removed package", "path", ref, "error", err)
		return
	}
	s.cancelRecords(store, records, "package removed")
}

// handleChanged records a new stable_since for a modified package and
// cancels any dependent transaction not yet queued.
func (s *Scheduler) handleChanged(ctx context.Context, d *dropbox.Dropbox, store *txn.Store, host, root string, pair tree.PackagePair, sampledAt int64) {
	pkg := pair.RHS
	pkg.StableSince = sampledAt

	p := &txn.SQLPackage{
		Host: host, RootPath: root, PackagePath: pkg.RelPath,
		ManagedAt: time.Now(), StableSince: pkg.StableSince,
	}
	if err := store.PutPackage(p); err != nil {
		s.log.Error("failed to persist changed package", "path", pkg.AbsPath(), "error", err)
		return
	}

	records, err := store.UnqueuedByInPackageRef(pkg.AbsPath())
	if err != nil {
		s.log.Error("failed to look up transactions for changed package", "path", pkg.AbsPath(), "error", err)
		return
	}
	s.cancelRecords(store, records, "package changed before being queued")
}

func (s *Scheduler) cancelRecords(store *txn.Store, records []*txn.Record, comment string) {
	for _, r := range records {
		txn.Cancel(r, comment)
		if err := store.Put(r); err != nil {
			s.log.Error("failed to persist canceled transaction", "id", r.ID, "error", err)
		}
	}
}

// maybeEnqueueTransaction implements the possibly-stable handler:
// once a package has been stable for at least stable_after, it tries each
// configured transaction type in order and enqueues the first one whose
// plugin says CanEnqueue, auto-approving per auto_approve. Only one type
// is enqueued per cycle: types are tried in sorted-by-name order and the
// first viable one wins (see DESIGN.md).
func (s *Scheduler) maybeEnqueueTransaction(ctx context.Context, d *dropbox.Dropbox, store *txn.Store, host, root string, pkg *tree.Package) {
	if time.Now().Unix()-pkg.StableSince < int64(d.Settings.StableAfterDuration().Seconds()) {
		return
	}

	sp, err := store.GetPackage(host, root, pkg.RelPath)
	if err != nil {
		return
	}

	inPackageRef := pkg.AbsPath()
	pv := txn.PackageView{AbsPath: inPackageRef, StableSince: pkg.StableSince}

	names := make([]string, 0, len(d.Settings.Transactions))
	for name := range d.Settings.Transactions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := d.Settings.Transactions[name]
		plugin, err := txn.Lookup(name)
		if err != nil {
			s.log.Warn("dropbox references unknown transaction type", "type", name)
			continue
		}

		existing, err := store.UnfinishedUnqueued(inPackageRef, name)
		if err != nil || len(existing) > 0 {
			continue
		}

		cfg := decodePluginConfig(node)
		plugin = s.withTransferHistory(store, plugin, inPackageRef)
		if !plugin.CanEnqueue(pv, sp, cfg) {
			continue
		}

		record := txn.NewRecord(host, name, inPackageRef, pkg.StableSince)
		autoApproved := contains(d.Settings.AutoApprove, name)
		if autoApproved {
			record.ApprovedByLogin = "system"
			percent := 0.0
			record.PercentDone = &percent
		}
		if err := store.Put(record); err != nil {
			s.log.Error("failed to persist transaction", "type", name, "error", err)
			return
		}
		if autoApproved {
			s.enqueueOperation(record.ID, name, pv)
		}
		return
	}
}

// resolvePluginConfig re-derives a transaction type's config from its
// owning dropbox's live YAML settings, so the operation pool never needs a
// stale snapshot carried across the queue.
func (s *Scheduler) resolvePluginConfig(pkgPath, pluginName string) map[string]any {
	d, err := s.finder.DropboxByContainedPath(pkgPath)
	if err != nil {
		return map[string]any{}
	}
	node, ok := d.Settings.Transactions[pluginName]
	if !ok {
		return map[string]any{}
	}
	return decodePluginConfig(node)
}

// withTransferHistory wires TransferPlugin's History callback against
// store, since CanEnqueue needs cross-record state the plugin itself
// doesn't persist.
func (s *Scheduler) withTransferHistory(store *txn.Store, plugin txn.Plugin, inPackageRef string) txn.Plugin {
	tp, ok := plugin.(txn.TransferPlugin)
	if !ok {
		return plugin
	}
	tp.History = func(_ txn.PackageView, _ map[string]any) txn.TransferHistory {
		records, err := store.PriorTransfers(inPackageRef)
		if err != nil {
			return txn.TransferHistory{}
		}
		return txn.BuildTransferHistory(records)
	}
	return tp
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
