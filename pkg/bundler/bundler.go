// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package bundler groups versioned paths into bundles: it consumes a stream
// of (path, meta) entries by regex-extracted version token and longest
// common prefix, producing VersionBundleList aggregates with optional
// retention pruning.
package bundler

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/fvbommel/sortorder"

	"github.com/stratastor/dropboxd/pkg/retention"
)

// DefaultVersionRegexp isolates a version token in capture group 2, e.g.
// "/proj/ab_v046/jpg/ab_v046.0103.jpg" -> group2 "046".
var DefaultVersionRegexp = regexp.MustCompile(`([_/\\-]v)(\d+)([_/\\.-])`)

// FileMeta is the per-path metadata the bundler aggregates over.
type FileMeta struct {
	Size     int64
	Ratio    float64 // logical-size/disk-size compression ratio; values <= 0 are treated as 1.0
	Created  time.Time
	Modified time.Time
}

// Entry is one (path, meta) record in the input stream.
type Entry struct {
	Path string
	Meta FileMeta
}

// Extract isolates prefix (the path substring up to, exclusive of, the
// version match) and the version token, using re (DefaultVersionRegexp if
// re is nil). ok is false when path carries no version token.
func Extract(re *regexp.Regexp, path string) (prefix, version string, ok bool) {
	if re == nil {
		re = DefaultVersionRegexp
	}
	loc := re.FindStringSubmatchIndex(path)
	if loc == nil {
		return "", "", false
	}
	// group 2 is submatch index pair 4:5 (1-based groups: whole=0, g1=2:3, g2=4:5).
	if len(loc) < 6 || loc[4] < 0 {
		return "", "", false
	}
	prefix = path[:loc[4]]
	version = path[loc[4]:loc[5]]
	return prefix, version, true
}

// Builder consumes a stream of Entry values via Add and accumulates them
// into map[prefix]map[version][]Entry per the prefix-adjacency rule:
// a bundle entry is recorded only when the current record's prefix matches
// the immediately preceding record's prefix; on prefix change the previous
// prefix's accumulation is pruned of single-version trees and empty
// entries. Records without a version token terminate the current
// accumulation without starting a new one.
type Builder struct {
	re       *regexp.Regexp
	raw      map[string]map[string][]Entry
	lastPrefix string
	hasLast    bool
}

// NewBuilder creates a Builder using re (DefaultVersionRegexp if nil).
func NewBuilder(re *regexp.Regexp) *Builder {
	return &Builder{re: re, raw: make(map[string]map[string][]Entry)}
}

// Add feeds one record into the accumulation.
func (b *Builder) Add(e Entry) {
	prefix, version, ok := Extract(b.re, e.Path)
	if !ok {
		b.pruneIfChanged("")
		return
	}

	if b.hasLast && prefix != b.lastPrefix {
		b.pruneIfChanged(prefix)
	}

	if _, ok := b.raw[prefix]; !ok {
		b.raw[prefix] = make(map[string][]Entry)
	}
	b.raw[prefix][version] = append(b.raw[prefix][version], e)
	b.lastPrefix = prefix
	b.hasLast = true
}

// pruneIfChanged drops the previous prefix's accumulation if it ended up a
// single-version tree or empty, then resets tracking to newPrefix.
func (b *Builder) pruneIfChanged(newPrefix string) {
	if b.hasLast {
		if versions, ok := b.raw[b.lastPrefix]; ok && len(versions) <= 1 {
			delete(b.raw, b.lastPrefix)
		}
	}
	b.lastPrefix = newPrefix
	b.hasLast = newPrefix != ""
}

// Raw returns the accumulated map[prefix]map[version][]Entry, finalizing
// the in-flight prefix's prune check first.
func (b *Builder) Raw() map[string]map[string][]Entry {
	b.pruneIfChanged("")
	out := make(map[string]map[string][]Entry, len(b.raw))
	for k, v := range b.raw {
		out[k] = v
	}
	return out
}

// RebuildOptions configures Rebuild's subclass hooks.
type RebuildOptions struct {
	IncludePrefix func(prefix string) bool
	IncludeItem   func(e Entry) bool
	Policy        *retention.Policy
	KeepLatestN   int
}

// RebuildOption is a functional option for Rebuild.
type RebuildOption func(*RebuildOptions)

func WithPrefixFilter(f func(string) bool) RebuildOption { return func(o *RebuildOptions) { o.IncludePrefix = f } }
func WithItemFilter(f func(Entry) bool) RebuildOption     { return func(o *RebuildOptions) { o.IncludeItem = f } }
func WithRetentionPolicy(p *retention.Policy) RebuildOption {
	return func(o *RebuildOptions) { o.Policy = p }
}
func WithKeepLatestN(n int) RebuildOption { return func(o *RebuildOptions) { o.KeepLatestN = n } }

// Rebuild converts the raw accumulation into map[prefix]*VersionBundleList,
// sorting versions ascending (integer value when the token parses as one,
// natural string order otherwise via fvbommel/sortorder), applying the
// subclass hooks, and marking bundles for deletion under either a
// retention.Policy (keyed by each bundle's MinCreated) or a keep-latest-N
// rule.
func Rebuild(raw map[string]map[string][]Entry, opts ...RebuildOption) map[string]*VersionBundleList {
	o := &RebuildOptions{}
	for _, fn := range opts {
		fn(o)
	}

	out := make(map[string]*VersionBundleList, len(raw))
	for prefix, versions := range raw {
		if o.IncludePrefix != nil && !o.IncludePrefix(prefix) {
			continue
		}

		tokens := make([]string, 0, len(versions))
		for v := range versions {
			tokens = append(tokens, v)
		}
		sortVersions(tokens)

		var bundles []*VersionBundle
		for _, v := range tokens {
			entries := versions[v]
			if o.IncludeItem != nil {
				filtered := entries[:0:0]
				for _, e := range entries {
					if o.IncludeItem(e) {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}
			if len(entries) == 0 {
				continue
			}
			bundles = append(bundles, newVersionBundle(v, entries))
		}

		if len(bundles) == 0 {
			continue
		}

		applyRetention(bundles, o)

		out[prefix] = newVersionBundleList(prefix, bundles)
	}
	return out
}

// sortVersions sorts ascending: integer value when every token parses as an
// integer, otherwise natural string order (fvbommel/sortorder).
func sortVersions(tokens []string) {
	allInt := true
	for _, t := range tokens {
		if _, err := strconv.Atoi(t); err != nil {
			allInt = false
			break
		}
	}
	if allInt {
		intSort(tokens)
		return
	}
	sort.Sort(sortorder.Natural(tokens))
}

func intSort(tokens []string) {
	// insertion sort is fine: bundle counts per prefix are small.
	for i := 1; i < len(tokens); i++ {
		key := tokens[i]
		vi, _ := strconv.Atoi(key)
		j := i - 1
		for j >= 0 {
			vj, _ := strconv.Atoi(tokens[j])
			if vj <= vi {
				break
			}
			tokens[j+1] = tokens[j]
			j--
		}
		tokens[j+1] = key
	}
}

func applyRetention(bundles []*VersionBundle, o *RebuildOptions) {
	if o.KeepLatestN > 0 {
		keep := o.KeepLatestN
		if keep > len(bundles) {
			keep = len(bundles)
		}
		// bundles are ascending by version (oldest..newest); mark all but
		// the N newest as removed.
		cutoff := len(bundles) - keep
		for i := 0; i < cutoff; i++ {
			bundles[i].Removal = true
		}
		return
	}
	if o.Policy != nil {
		samples := make([]retention.Sample[*VersionBundle], len(bundles))
		for i, b := range bundles {
			samples[i] = retention.Sample[*VersionBundle]{Timestamp: b.MinCreated.Unix(), Payload: b}
		}
		_, dropped := retention.Filter(o.Policy, time.Now().Unix(), samples)
		for _, d := range dropped {
			d.Payload.Removal = true
		}
	}
}
