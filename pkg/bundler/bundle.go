// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package bundler

import "time"

// VersionBundle is an ordered set of entries sharing one extracted
// version token.
type VersionBundle struct {
	Version string
	Entries []Entry

	DiskSize    int64
	LogicalSize int64
	AvgCreated  time.Time
	AvgModified time.Time
	MinCreated  time.Time
	NumFiles    int
	Removal     bool
}

func newVersionBundle(version string, entries []Entry) *VersionBundle {
	b := &VersionBundle{Version: version, Entries: entries, NumFiles: len(entries)}

	var createdSum, modifiedSum int64
	for i, e := range entries {
		ratio := e.Meta.Ratio
		if ratio <= 0 {
			ratio = 1.0
		}
		b.DiskSize += int64(float64(e.Meta.Size) / ratio)
		b.LogicalSize += e.Meta.Size
		createdSum += e.Meta.Created.Unix()
		modifiedSum += e.Meta.Modified.Unix()
		if i == 0 || e.Meta.Created.Before(b.MinCreated) {
			b.MinCreated = e.Meta.Created
		}
	}
	if len(entries) > 0 {
		b.AvgCreated = time.Unix(createdSum/int64(len(entries)), 0).UTC()
		b.AvgModified = time.Unix(modifiedSum/int64(len(entries)), 0).UTC()
	}
	return b
}

// VersionBundleList is an ordered collection of VersionBundles sharing a
// common prefix, with aggregates over its bundles.
type VersionBundleList struct {
	Prefix  string
	Bundles []*VersionBundle

	DiskSize         int64
	LogicalSize      int64
	AvgCreated       time.Time
	AvgModified      time.Time
	NumFiles         int
	DeletedVersions  int
	FreedDiskSpace   int64
}

func newVersionBundleList(prefix string, bundles []*VersionBundle) *VersionBundleList {
	l := &VersionBundleList{Prefix: prefix, Bundles: bundles}

	var createdSum, modifiedSum int64
	var n int
	for _, b := range bundles {
		l.DiskSize += b.DiskSize
		l.LogicalSize += b.LogicalSize
		l.NumFiles += b.NumFiles
		n += b.NumFiles
		createdSum += b.AvgCreated.Unix() * int64(b.NumFiles)
		modifiedSum += b.AvgModified.Unix() * int64(b.NumFiles)
		if b.Removal {
			l.DeletedVersions++
			l.FreedDiskSpace += b.DiskSize
		}
	}
	if n > 0 {
		l.AvgCreated = time.Unix(createdSum/int64(n), 0).UTC()
		l.AvgModified = time.Unix(modifiedSum/int64(n), 0).UTC()
	}
	return l
}

// Removed returns the subset of bundles marked for deletion.
func (l *VersionBundleList) Removed() []*VersionBundle {
	var out []*VersionBundle
	for _, b := range l.Bundles {
		if b.Removal {
			out = append(out, b)
		}
	}
	return out
}
