// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package retention implements the multi-period retention-policy grammar
// and the raster-based sample pruning it drives.
package retention

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// Period is one "[keep:]frequency:duration" rule, frequency and duration
// expressed in seconds.
type Period struct {
	Keep      int
	Frequency int64
	Duration  int64
}

// Policy is a parsed retention policy string.
type Policy struct {
	KeepInitial int
	Periods     []Period
}

var unitSeconds = map[byte]int64{
	's': 1,
	'h': 3600,
	'd': 86400,
	'w': 7 * 86400,
	'm': 30 * 86400,
	'y': 365 * 86400,
}

func durationToSeconds(tok string) (int64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, fmt.Errorf("empty duration")
	}
	unit := tok[len(tok)-1]
	secs, ok := unitSeconds[unit]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q in %q (expected one of s,h,d,w,m,y)", string(unit), tok)
	}
	n, err := strconv.ParseInt(tok[:len(tok)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in %q: %w", tok, err)
	}
	return n * secs, nil
}

// ParsePolicy parses the grammar:
// "[N-]period{,period}" where period is "[keep:]frequency:duration".
func ParsePolicy(s string) (*Policy, error) {
	keepInitial := 0
	rest := s

	if idx := strings.Index(s, "-"); idx >= 0 {
		head := s[:idx]
		n, err := strconv.Atoi(head)
		if err != nil {
			return nil, errors.New(errors.InvalidPolicy, fmt.Sprintf("could not parse global keep value %q", head))
		}
		keepInitial = n
		rest = s[idx+1:]
		if rest == "" {
			return &Policy{KeepInitial: keepInitial}, nil
		}
	}

	var periods []Period
	for _, raw := range strings.Split(rest, ",") {
		period := strings.TrimSpace(raw)
		tokens := strings.Split(period, ":")
		if len(tokens) != 2 && len(tokens) != 3 {
			return nil, errors.New(errors.InvalidPolicy,
				fmt.Sprintf("period %q was malformed, should be '[keep:]frequency:duration'", period))
		}

		keep := 0
		if len(tokens) == 3 {
			k, err := strconv.Atoi(tokens[0])
			if err != nil {
				return nil, errors.New(errors.InvalidPolicy,
					fmt.Sprintf("'keep' portion of period %q must be an integer", period))
			}
			keep = k
			tokens = tokens[1:]
		}

		frequency, err := durationToSeconds(tokens[0])
		if err != nil {
			return nil, errors.New(errors.InvalidPolicy, err.Error())
		}
		duration, err := durationToSeconds(tokens[1])
		if err != nil {
			return nil, errors.New(errors.InvalidPolicy, err.Error())
		}
		if frequency <= 0 || duration/frequency < 1 {
			return nil, errors.New(errors.InvalidPolicy, "frequency cannot be larger than the duration")
		}

		periods = append(periods, Period{Keep: keep, Frequency: frequency, Duration: duration})
		if len(periods) > 1 {
			prev := periods[len(periods)-2].Frequency
			if prev > frequency {
				return nil, errors.New(errors.InvalidPolicy,
					"frequency must not get less granular in following retention periods")
			}
		}
	}

	return &Policy{KeepInitial: keepInitial, Periods: periods}, nil
}

// Sample pairs a unix timestamp with an arbitrary payload.
type Sample[T any] struct {
	Timestamp int64
	Payload   T
}

// Filter partitions samples into kept and dropped per the raster
// algorithm. Both outputs are ordered newest-to-oldest. Input order does
// not matter; Filter sorts internally.
//
// Go has no generic methods, so this is a package-level function taking
// the Policy as its first argument.
func Filter[T any](p *Policy, now int64, samples []Sample[T]) (kept, dropped []Sample[T]) {
	sorted := make([]Sample[T], len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	// new -> old
	rev := make([]Sample[T], len(sorted))
	for i, s := range sorted {
		rev[len(sorted)-1-i] = s
	}

	ls := len(rev)
	keepInitial := p.KeepInitial

	if keepInitial > 0 && len(p.Periods) == 0 {
		n := keepInitial
		if n > ls {
			n = ls
		}
		return rev[:n], rev[n:]
	}

	var ns, fs, ds []Sample[T]
	sid := 0
	toTime := now

	for rid, period := range p.Periods {
		fromTime := toTime - period.Duration
		inLastRule := rid == len(p.Periods)-1

		var retentionSamples []Sample[T]

		for sid < ls {
			sample := rev[sid]
			date := sample.Timestamp

			if date > toTime || keepInitial > 0 {
				fs = append(fs, sample)
				if keepInitial > 0 {
					keepInitial--
				}
				sid++
				continue
			}

			if date <= fromTime {
				break
			}

			retentionSamples = append(retentionSamples, sample)
			sid++
		}

		if period.Keep > 0 {
			n := period.Keep
			if n > len(retentionSamples) {
				n = len(retentionSamples)
			}
			ns = append(ns, retentionSamples[:n]...)
			retentionSamples = retentionSamples[n:]
		}

		numSamplesInSpan := period.Duration / period.Frequency
		numToRemove := int64(len(retentionSamples)) - numSamplesInSpan

		switch {
		case numToRemove > 0:
			raster := make([]int64, 0, numSamplesInSpan+1)
			raster = append(raster, fromTime)
			for step := numSamplesInSpan - 1; step >= 0; step-- {
				raster = append(raster, toTime-step*period.Frequency)
			}

			// Assign each retained sample to its closest raster slot (the
			// first boundary at or after its timestamp), then within each
			// slot keep only the closest sample and drop the rest,
			// processing newest slot first until the excess is gone.
			type slotMember struct {
				distance int64
				index    int
			}
			bySlot := make(map[int][]slotMember)
			for i, sample := range retentionSamples {
				slot := sort.Search(len(raster), func(i int) bool { return raster[i] >= sample.Timestamp })
				if slot == len(raster) {
					slot = len(raster) - 1
				}
				bySlot[slot] = append(bySlot[slot], slotMember{
					distance: toTime - sample.Timestamp,
					index:    i,
				})
			}

			removed := make(map[int]bool)
			for slot := len(raster) - 1; slot >= 0 && numToRemove > 0; slot-- {
				members, ok := bySlot[slot]
				if !ok {
					continue
				}
				sort.SliceStable(members, func(a, b int) bool { return members[a].distance < members[b].distance })
				for _, m := range members[1:] {
					if numToRemove == 0 {
						break
					}
					ds = append(ds, retentionSamples[m.index])
					removed[m.index] = true
					numToRemove--
				}
			}

			survivors := make([]Sample[T], 0, len(retentionSamples)-len(removed))
			for i, sample := range retentionSamples {
				if !removed[i] {
					survivors = append(survivors, sample)
				}
			}
			retentionSamples = survivors

		case inLastRule && numToRemove < 0:
			numToKeep := int(-numToRemove)
			count := ls - sid
			if count > numToKeep {
				count = numToKeep
			}
			for i := 0; i < count; i++ {
				retentionSamples = append(retentionSamples, rev[sid])
				sid++
			}
		}

		toTime = fromTime
		ns = append(ns, retentionSamples...)
	}

	if len(fs) > 0 {
		ns = append(fs, ns...)
	}

	for ; sid < ls; sid++ {
		ds = append(ds, rev[sid])
	}

	return ns, ds
}
