// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregateRowSkippedWhenEmpty(t *testing.T) {
	r := New(Column{Name: "size", Reduce: NewSum()})
	require.Nil(t, r.AggregateRow())
}

func TestAggregateRowSumAndDistinct(t *testing.T) {
	r := New(
		Column{Name: "host", Reduce: NewDistinct()},
		Column{Name: "size", Reduce: NewSum()},
	)
	r.AddRecord("h1", 10.0)
	r.AddRecord("h2", 20.0)
	r.AddRecord("h1", 30.0)

	agg := r.AggregateRow()
	require.Equal(t, "#2", agg[0])
	require.Equal(t, "60", agg[1])
}

func TestCSVNoRecords(t *testing.T) {
	r := New(Column{Name: "host"})
	out := string(r.CSV(true))
	require.Equal(t, NoRecordsFound+"\n", out)
}

func TestCSVWithHeaderAndAggregate(t *testing.T) {
	r := New(
		Column{Name: "host"},
		Column{Name: "size", Reduce: NewSum()},
	)
	r.AddRecord("h1", 10.0)
	r.AddRecord("h2", 20.0)

	out := string(r.CSV(true))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, "host;size", lines[0])
	require.Equal(t, "h1;10", lines[1])
	require.Equal(t, "h2;20", lines[2])
	require.Equal(t, ";30", lines[3])
}

func TestTTYColumnWidths(t *testing.T) {
	r := New(Column{Name: "host"})
	r.AddRecord("averylonghostname")
	r.AddRecord("h2")
	out := string(r.TTY())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, len("averylonghostname"), len(strings.TrimRight(lines[1], " ")))
}
