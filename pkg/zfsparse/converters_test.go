// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverters(t *testing.T) {
	t.Run("Size", func(t *testing.T) {
		v, err := Size("1.5G")
		require.NoError(t, err)
		assert.Equal(t, int64(1.5*(1<<30)), v)

		v, err = Size("512")
		require.NoError(t, err)
		assert.Equal(t, int64(512), v)
	})

	t.Run("Ratio", func(t *testing.T) {
		v, err := Ratio("1.23x")
		require.NoError(t, err)
		assert.InDelta(t, 1.23, v, 0.0001)
	})

	t.Run("Bool", func(t *testing.T) {
		v, err := Bool("on")
		require.NoError(t, err)
		assert.Equal(t, true, v)

		v, err = Bool("off")
		require.NoError(t, err)
		assert.Equal(t, false, v)

		_, err = Bool("sideways")
		require.Error(t, err)
	})

	t.Run("Int falls back to bool", func(t *testing.T) {
		v, err := Int("42")
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)

		v, err = Int("on")
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})
}

func TestTabParser(t *testing.T) {
	schema := []Field{
		{Name: "name", Convert: String},
		{Name: "used", Convert: Size},
		{Name: "avail", Convert: Size},
		{Name: "ratio", Convert: Ratio},
	}
	p := NewTabParser(schema)

	rec, err := p.ParseLine("tank/data\t1G\t-\t1.10x")
	require.NoError(t, err)
	assert.Equal(t, "tank/data", rec["name"])
	assert.Equal(t, int64(1<<30), rec["used"])
	assert.Nil(t, rec["avail"])

	_, err = p.ParseLine("tank/data\t1G")
	require.Error(t, err, "column count mismatch must fail")
}

func TestColumnParser(t *testing.T) {
	header := "NAME                 USED  AVAIL  CREATION"
	specs := []ColumnSpec{
		{Name: "name", Convert: String},
		{Name: "used", Convert: Size},
		{Name: "avail", Convert: Size},
		{Name: "creation", Tokens: 5, Convert: Date},
	}

	parser, err := NewColumnParser(header, specs)
	require.NoError(t, err)

	line := "tank/data            1.5G  500M   Mon Jan  2 15:04 2023"
	rec, err := parser.Parse(line)
	require.NoError(t, err)
	assert.Equal(t, "tank/data", rec["name"])
	assert.Equal(t, int64(1.5*(1<<30)), rec["used"])
}

func TestColumnParserDetectsOvershootNull(t *testing.T) {
	header := "NAME       USED  AVAIL"
	specs := []ColumnSpec{
		{Name: "name", Convert: String},
		{Name: "used", Convert: Size},
		{Name: "avail", Convert: Size},
	}
	parser, err := NewColumnParser(header, specs)
	require.NoError(t, err)

	// "used" column has no value at all; "1G" begins at the position where
	// "avail" starts in the header, so it must be attributed to avail, not
	// used, leaving used NULL.
	line := "tank             1G"
	rec, err := parser.Parse(line)
	require.NoError(t, err)
	assert.Nil(t, rec["used"])
	assert.Equal(t, int64(1<<30), rec["avail"])
}
