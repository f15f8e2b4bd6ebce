// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByColumn orders r.Records ascending by the string-formatted value of
// column ci, using a locale-aware collator (rather than raw byte
// comparison) so that report output sorts the way an operator expects
// regardless of case or accents.
func (r *Report) SortByColumn(ci int) {
	if ci < 0 || ci >= len(r.Columns) {
		return
	}
	col := r.Columns[ci]
	c := collate.New(language.Und)

	sort.SliceStable(r.Records, func(i, j int) bool {
		a := col.format(r.Records[i][ci])
		b := col.format(r.Records[j][ci])
		return c.CompareString(a, b) < 0
	})
}
