//go:build !linux
// +build !linux

// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"os"
	"time"
)

func platformStat(info os.FileInfo) (uid, gid int, nblocks int64, nlink int, ctime, atime time.Time, ok bool) {
	return 0, 0, 0, 0, time.Time{}, time.Time{}, false
}
