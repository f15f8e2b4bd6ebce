//go:build linux
// +build linux

// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"os"
	"syscall"
	"time"
)

// platformStat extracts the uid/gid/nblocks/nlink/ctime/atime fields a
// plain os.FileInfo doesn't carry, mirroring pkg/txn's per-platform Sys()
// access pattern.
func platformStat(info os.FileInfo) (uid, gid int, nblocks int64, nlink int, ctime, atime time.Time, ok bool) {
	stat, isStat := info.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, 0, 0, 0, time.Time{}, time.Time{}, false
	}
	return int(stat.Uid), int(stat.Gid), int64(stat.Blocks), int(stat.Nlink),
		time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec), time.Unix(stat.Atim.Sec, stat.Atim.Nsec), true
}
