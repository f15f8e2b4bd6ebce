// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package zfsmodel persists per-host ZFS pool and dataset inventories into
// a sqlite-backed relational schema.
package zfsmodel

import (
	"strconv"
	"time"
)

// Pool is one observed zpool; (host, name) is the primary key.
type Pool struct {
	Host       string
	Name       string
	Size       int64
	Free       int64
	Alloc      int64
	Cap        int
	Health     string
	DedupRatio float64
	Version    string
	Features   map[string]string
	ReadOnly   bool
	UpdatedAt  time.Time
}

// Dataset is one observed zfs dataset; (host, name) is the primary key.
// Name includes the pool prefix and optional "@snapshot". AvailNull == true
// uniquely identifies a snapshot.
type Dataset struct {
	Host        string
	Name        string
	Type        string
	Creation    time.Time
	Used        int64
	AvailNull   bool
	Avail       int64
	Refer       int64
	CompressionRatio float64
	Quota       int64
	Reservation int64
	UsedDS      int64
	UsedChild   int64
	UsedSnap    int64
	Compression string
	Properties  map[string]string
	UpdatedAt   time.Time
}

// IsSnapshot reports whether d is a ZFS snapshot (avail IS NULL).
func (d *Dataset) IsSnapshot() bool { return d.AvailNull }

// Priority reads the zfs_priority:int custom property, defaulting to
// 0 when absent or unparseable.
func (d *Dataset) Priority() int {
	v, ok := d.Properties["zfs_priority"]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ReceiveURL reads the zfs_receive_url:string custom property.
func (d *Dataset) ReceiveURL() (string, bool) {
	v, ok := d.Properties["zfs_receive_url"]
	return v, ok
}
