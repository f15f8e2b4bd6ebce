// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"strings"

	"github.com/stratastor/dropboxd/pkg/zfsmodel"
)

// poolMetrics and filesystemMetrics name the per-entity fields submitted
// to carbon.
var poolMetrics = []string{"size", "free", "alloc", "cap", "health", "dedup"}
var filesystemMetrics = []string{"used", "avail", "refer", "ratio", "quota", "reserv"}

// metricPath builds "hosts.<host>.zfs.<subdir>.<name-with-dots>." with
// slashes in name replaced by dots.
func metricPath(host, subdir, name string) string {
	dotted := strings.ReplaceAll(name, "/", ".")
	var b strings.Builder
	b.WriteString("hosts.")
	b.WriteString(host)
	b.WriteString(".zfs.")
	b.WriteString(subdir)
	b.WriteString(".")
	b.WriteString(dotted)
	b.WriteString(".")
	return b.String()
}

// healthToValue maps a pool health string to a numeric value, since carbon
// samples are always floats; ONLINE maps to 1, anything else to 0.
func healthToValue(health string) float64 {
	if strings.EqualFold(health, "ONLINE") {
		return 1
	}
	return 0
}

// PoolSamples builds the "hosts.<host>.zfs.pools.<pool>.<metric>" samples
// for a sync snapshot of a host's pools.
func PoolSamples(timestamp int64, host string, pools []zfsmodel.Pool) []Sample {
	out := make([]Sample, 0, len(pools)*len(poolMetrics))
	for _, p := range pools {
		key := metricPath(host, "pools", p.Name)
		values := map[string]float64{
			"size":   float64(p.Size),
			"free":   float64(p.Free),
			"alloc":  float64(p.Alloc),
			"cap":    float64(p.Cap),
			"health": healthToValue(p.Health),
			"dedup":  p.DedupRatio,
		}
		for _, metric := range poolMetrics {
			out = append(out, Sample{Path: key + metric, Timestamp: timestamp, Value: values[metric]})
		}
	}
	return out
}

// DatasetSamples builds the "hosts.<host>.zfs.filesystems.<path>.<metric>"
// samples for a host's non-snapshot datasets; snapshots are excluded.
func DatasetSamples(timestamp int64, host string, datasets []zfsmodel.Dataset) []Sample {
	out := make([]Sample, 0, len(datasets)*len(filesystemMetrics))
	for _, d := range datasets {
		if d.IsSnapshot() || strings.Contains(d.Name, "@") {
			continue
		}
		key := metricPath(host, "filesystems", d.Name)
		reserve := d.Reservation
		values := map[string]float64{
			"used":    float64(d.Used),
			"avail":   float64(d.Avail),
			"refer":   float64(d.Refer),
			"ratio":   d.CompressionRatio,
			"quota":   float64(d.Quota),
			"reserv":  float64(reserve),
		}
		for _, metric := range filesystemMetrics {
			out = append(out, Sample{Path: key + metric, Timestamp: timestamp, Value: values[metric]})
		}
	}
	return out
}
