// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfssync

import (
	"fmt"
	"strconv"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func errUnknownFormat(to string) error {
	return fmt.Errorf("unknown --to format %q: want csv, sql-sync, or graphite", to)
}
