//go:build !linux
// +build !linux

// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"os"
	"time"
)

func platformStatTimes(info os.FileInfo) (ctime, atime time.Time, ok bool) {
	return time.Time{}, time.Time{}, false
}

func fileOwnership(info os.FileInfo) (uid, gid int, ok bool) {
	return 0, 0, false
}
