// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsmodel

import (
	"github.com/stratastor/dropboxd/pkg/errors"
)

// ReserveMode selects which ZFS property DistributeReservations
// computes.
type ReserveMode string

const (
	ModeQuota       ReserveMode = "quota"
	ModeReservation ReserveMode = "reservation"
)

// Allocation is the computed distribution for one filesystem: reserve is
// the quota/reservation value to apply, remaining/change are its headroom
// against current usage.
type Allocation struct {
	Dataset   *Dataset
	Priority  int
	Used      int64
	Reserve   int64
	Remaining int64
	Change    int64
	PercentFull float64
}

// DistributeReservations distributes pool free space by priority: among
// the filesystems of one pool that carry a non-inherited zfs_priority
// property, totalAlloc bytes are split proportionally, reserve =
// (totalAlloc / sum(priorities)) * priority.
//
// totalAlloc is the caller's resolved distribution budget: either an
// explicit byte count, or pool.Size * maxCapPercent/100 when the caller
// wants a cap-relative budget (the report generator's "max_cap" mode).
// Non-positive priorities are rejected as InvalidConfig, since a zero
// priority sum would divide by zero.
func DistributeReservations(datasets []*Dataset, totalAlloc int64, mode ReserveMode) ([]Allocation, error) {
	if len(datasets) == 0 {
		return nil, nil
	}

	totalParts := 0
	for _, d := range datasets {
		totalParts += d.Priority()
	}
	if totalParts <= 0 {
		return nil, errors.New(errors.InvalidConfig, "zfs_priority values sum to zero; cannot distribute reservations")
	}

	out := make([]Allocation, 0, len(datasets))
	for _, d := range datasets {
		prio := d.Priority()
		reserve := int64(float64(totalAlloc) / float64(totalParts) * float64(prio))
		pctFull := 0.0
		if reserve != 0 {
			pctFull = float64(d.Used) / float64(reserve) * 100.0
		}
		out = append(out, Allocation{
			Dataset:     d,
			Priority:    prio,
			Used:        d.Used,
			Reserve:     reserve,
			Remaining:   reserve - d.Used,
			Change:      reserve - d.Avail,
			PercentFull: pctFull,
		})
	}
	return out, nil
}

// FilesystemsWithPriority returns host's non-snapshot datasets under
// poolName that carry a non-inherited zfs_priority property, the input
// set for DistributeReservations, one host/pool at a time.
func (s *Store) FilesystemsWithPriority(host, poolName string) ([]*Dataset, error) {
	rows, err := s.db.Query(
		"SELECT "+datasetCols+` FROM datasets
		 WHERE host = ? AND avail_null = 0 AND name LIKE ?`,
		host, poolName+"/%")
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		if _, ok := d.Properties["zfs_priority"]; !ok {
			continue
		}
		inherited, err := s.PropertyIsInherited(d, "zfs_priority")
		if err != nil {
			return nil, err
		}
		if inherited {
			continue
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
