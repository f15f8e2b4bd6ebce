// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	t.Run("S1 grammar", func(t *testing.T) {
		p, err := ParsePolicy("1h:1d,1d:14d,14d:28d,30d:1y")
		require.NoError(t, err)
		require.Len(t, p.Periods, 4)
		assert.Equal(t, int64(3600), p.Periods[0].Frequency)
		assert.Equal(t, int64(86400), p.Periods[0].Duration)
	})

	t.Run("global keep prefix", func(t *testing.T) {
		p, err := ParsePolicy("5-1h:1d")
		require.NoError(t, err)
		assert.Equal(t, 5, p.KeepInitial)
	})

	t.Run("global keep with no rules", func(t *testing.T) {
		p, err := ParsePolicy("5-")
		require.NoError(t, err)
		assert.Equal(t, 5, p.KeepInitial)
		assert.Empty(t, p.Periods)
	})

	t.Run("rejects duration smaller than frequency", func(t *testing.T) {
		_, err := ParsePolicy("1d:1h")
		require.Error(t, err)
	})

	t.Run("rejects decreasing granularity", func(t *testing.T) {
		_, err := ParsePolicy("1d:7d,1h:1d")
		require.Error(t, err)
	})

	t.Run("rejects malformed period", func(t *testing.T) {
		_, err := ParsePolicy("1h")
		require.Error(t, err)
	})

	t.Run("per-period keep", func(t *testing.T) {
		p, err := ParsePolicy("3:1h:1d")
		require.NoError(t, err)
		assert.Equal(t, 3, p.Periods[0].Keep)
	})
}

const day = int64(86400)
const hour = int64(3600)

func TestFilter(t *testing.T) {
	t.Run("S1 hourly samples for a year", func(t *testing.T) {
		p, err := ParsePolicy("1h:1d,1d:14d,14d:28d,30d:1y")
		require.NoError(t, err)

		now := int64(365 * 86400 * 10) // arbitrary epoch far enough to avoid negative timestamps
		var samples []Sample[int]
		for age := int64(0); age < 365*day; age += hour {
			samples = append(samples, Sample[int]{Timestamp: now - age, Payload: int(age)})
		}

		kept, dropped := Filter(p, now, samples)
		assert.Equal(t, len(samples), len(kept)+len(dropped))
		assert.Equal(t, 52, len(kept))
	})

	t.Run("idempotence", func(t *testing.T) {
		p, err := ParsePolicy("1h:1d,1d:14d")
		require.NoError(t, err)

		now := int64(365 * 86400 * 10)
		var samples []Sample[int]
		for age := int64(0); age < 20*day; age += hour {
			samples = append(samples, Sample[int]{Timestamp: now - age, Payload: int(age)})
		}

		kept, dropped := Filter(p, now, samples)
		assert.Equal(t, len(samples), len(kept)+len(dropped))

		keptAgain, droppedAgain := Filter(p, now, kept)
		assert.Equal(t, len(kept), len(keptAgain))
		assert.Empty(t, droppedAgain)
	})

	t.Run("partition covers all samples", func(t *testing.T) {
		p, err := ParsePolicy("1d:7d")
		require.NoError(t, err)

		now := int64(200 * day)
		samples := []Sample[string]{
			{Timestamp: now, Payload: "a"},
			{Timestamp: now - hour, Payload: "b"},
			{Timestamp: now - 2*day, Payload: "c"},
			{Timestamp: now - 10*day, Payload: "d"},
		}

		kept, dropped := Filter(p, now, samples)
		assert.Equal(t, len(samples), len(kept)+len(dropped))

		seen := map[string]bool{}
		for _, s := range kept {
			seen[s.Payload] = true
		}
		for _, s := range dropped {
			assert.False(t, seen[s.Payload], "sample %s both kept and dropped", s.Payload)
		}
	})

	t.Run("last period never underfills", func(t *testing.T) {
		p, err := ParsePolicy("1h:1d,1d:14d")
		require.NoError(t, err)

		now := int64(200 * day)
		// Only two samples total, far apart: the last period's slot budget
		// (14) must not drop either for lack of candidates.
		samples := []Sample[int]{
			{Timestamp: now - hour, Payload: 1},
			{Timestamp: now - 100*day, Payload: 2},
		}

		kept, dropped := Filter(p, now, samples)
		assert.Len(t, dropped, 0)
		assert.Len(t, kept, 2)
	})

	t.Run("keep-only policy with no periods", func(t *testing.T) {
		p, err := ParsePolicy("3-")
		require.NoError(t, err)

		now := int64(200 * day)
		var samples []Sample[int]
		for i := 0; i < 5; i++ {
			samples = append(samples, Sample[int]{Timestamp: now - int64(i)*hour, Payload: i})
		}

		kept, dropped := Filter(p, now, samples)
		assert.Len(t, kept, 3)
		assert.Len(t, dropped, 2)
	})
}
