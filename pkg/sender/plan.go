// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package sender plans ZFS snapshot transfers: destination resolution,
// minimal incremental send/receive plan computation, and operator-runnable
// transport script emission.
package sender

import (
	"github.com/stratastor/dropboxd/pkg/zfsmodel"
)

// Planner computes send/receive plans against a ZFS state store.
type Planner struct {
	Store *zfsmodel.Store
}

// New creates a Planner.
func New(store *zfsmodel.Store) *Planner { return &Planner{Store: store} }

// Plan is the computed minimal incremental send plan from a source
// filesystem to a destination.
type Plan struct {
	Source   *zfsmodel.Dataset
	Dest     *zfsmodel.Dataset // nil when the destination filesystem does not exist yet
	DestHost string
	DestName string
	Sync     string // "" | "replicate" | "replicate_force", from the ZFSURL query field

	SsFrom               string // common snapshot name to send from; "" = full send
	SnapshotsToSend      []*zfsmodel.Dataset
	DestSnapshotsDropped int // destination snapshots newer than SsFrom, rolled back before receive

	SendSize     int64 // compressed bytes on the wire
	TransferSize int64 // uncompressed bytes

	FreeAfter int64
	CapAfter  int

	// NoCommonSnapshot/NothingToSend record why script emission will refuse
	// a destructive or no-op plan.
	NoCommonSnapshot bool
	NothingToSend    bool
}

// Compute builds the minimal send/receive plan from src to destHost/destName.
func (p *Planner) Compute(src *zfsmodel.Dataset, destHost, destName, sync string) (*Plan, error) {
	srcSnaps, err := p.Store.Snapshots(src)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Source: src, DestHost: destHost, DestName: destName, Sync: sync}

	dest, err := p.Store.GetDataset(destHost, destName)
	destExists := err == nil
	if destExists {
		plan.Dest = dest
	}

	if !destExists {
		plan.SsFrom = ""
		plan.SnapshotsToSend = srcSnaps
		plan.SendSize, plan.TransferSize = sumDeltas(srcSnaps)
		p.computeCapacity(plan, nil)
		return plan, nil
	}

	destSnaps, err := p.Store.Snapshots(dest)
	if err != nil {
		return nil, err
	}

	destNames := make(map[string]*zfsmodel.Dataset, len(destSnaps))
	for _, s := range destSnaps {
		destNames[snapName(s)] = s
	}

	// Newest source snapshot that also exists on the destination, by name.
	var common *zfsmodel.Dataset
	for i := len(srcSnaps) - 1; i >= 0; i-- {
		if _, ok := destNames[snapName(srcSnaps[i])]; ok {
			common = srcSnaps[i]
			break
		}
	}

	if common == nil {
		plan.NoCommonSnapshot = true
		// Still priced as a full send for candidate-comparison purposes
		// (ResolveSearch); Script() refuses to emit it regardless.
		plan.SendSize, plan.TransferSize = sumDeltas(srcSnaps)
		return plan, nil
	}
	plan.SsFrom = snapName(common)

	for _, s := range destSnaps {
		if s.Creation.After(common.Creation) {
			plan.DestSnapshotsDropped++
		}
	}

	var toSend []*zfsmodel.Dataset
	for _, s := range srcSnaps {
		if s.Creation.After(common.Creation) {
			toSend = append(toSend, s)
		}
	}
	if len(toSend) == 0 {
		plan.NothingToSend = true
		return plan, nil
	}
	plan.SnapshotsToSend = toSend
	plan.SendSize, plan.TransferSize = sumDeltas(toSend)

	p.computeCapacity(plan, dest)
	return plan, nil
}

func snapName(d *zfsmodel.Dataset) string {
	for i := len(d.Name) - 1; i >= 0; i-- {
		if d.Name[i] == '@' {
			return d.Name[i+1:]
		}
	}
	return ""
}

// sumDeltas estimates (compressed send size, uncompressed transfer size)
// from snapshot usedsnap deltas. The daemon never shells out to `zfs send
// -nP` for planning; it emits scripts for operator review.
func sumDeltas(snaps []*zfsmodel.Dataset) (sendSize, transferSize int64) {
	for _, s := range snaps {
		transferSize += s.UsedSnap
		if s.CompressionRatio > 0 {
			sendSize += int64(float64(s.UsedSnap) / s.CompressionRatio)
		} else {
			sendSize += s.UsedSnap
		}
	}
	return sendSize, transferSize
}

func (p *Planner) computeCapacity(plan *Plan, dest *zfsmodel.Dataset) {
	var pool *zfsmodel.Pool
	var err error
	if dest != nil {
		pool, err = p.Store.Pool(dest)
	} else {
		pool, err = p.Store.GetPool(plan.DestHost, firstSegment(plan.DestName))
	}
	if err != nil {
		return
	}
	plan.FreeAfter = pool.Free - plan.SendSize
	if pool.Size > 0 {
		plan.CapAfter = int((pool.Alloc + plan.SendSize) * 100 / pool.Size)
	}
}

func firstSegment(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return name[:i]
		}
	}
	return name
}
