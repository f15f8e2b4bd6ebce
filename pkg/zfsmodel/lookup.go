// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsmodel

import (
	"sort"
	"strings"
	"time"

	"github.com/stratastor/dropboxd/pkg/errors"
	"github.com/stratastor/dropboxd/pkg/zfsurl"
)

func scanPool(row rowScanner) (*Pool, error) {
	var p Pool
	var features string
	var readOnly int
	var updatedAt int64
	if err := row.Scan(&p.Host, &p.Name, &p.Size, &p.Free, &p.Alloc, &p.Cap, &p.Health,
		&p.DedupRatio, &p.Version, &features, &readOnly, &updatedAt); err != nil {
		return nil, err
	}
	p.Features = decodeMap(features)
	p.ReadOnly = readOnly != 0
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func scanDataset(row rowScanner) (*Dataset, error) {
	var d Dataset
	var props string
	var availNull int
	var creation, updatedAt int64
	if err := row.Scan(&d.Host, &d.Name, &d.Type, &creation, &d.Used, &availNull, &d.Avail,
		&d.Refer, &d.CompressionRatio, &d.Quota, &d.Reservation, &d.UsedDS, &d.UsedChild,
		&d.UsedSnap, &d.Compression, &props, &updatedAt); err != nil {
		return nil, err
	}
	d.Properties = decodeMap(props)
	d.AvailNull = availNull != 0
	d.Creation = time.Unix(creation, 0).UTC()
	d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const poolCols = "host, name, size, free, alloc, cap, health, dedup_ratio, version, features, read_only, updated_at"
const datasetCols = "host, name, type, creation, used, avail_null, avail, refer, compression_ratio, quota, reservation, used_ds, used_child, used_snap, compression, properties, updated_at"

// GetPool returns the pool (host, name), or NotFound.
func (s *Store) GetPool(host, name string) (*Pool, error) {
	row := s.db.QueryRow("SELECT "+poolCols+" FROM pools WHERE host = ? AND name = ?", host, name)
	p, err := scanPool(row)
	if err != nil {
		return nil, errors.New(errors.PoolNotFound, host+"/"+name)
	}
	return p, nil
}

// GetDataset returns the dataset (host, name), or NotFound.
func (s *Store) GetDataset(host, name string) (*Dataset, error) {
	row := s.db.QueryRow("SELECT "+datasetCols+" FROM datasets WHERE host = ? AND name = ?", host, name)
	d, err := scanDataset(row)
	if err != nil {
		return nil, errors.New(errors.DatasetNotFound, host+"/"+name)
	}
	return d, nil
}

// LookupURL resolves a ZFSURL to its Pool or Dataset. A bare pool URL
// (no filesystem/snapshot segment) resolves to the Pool, unless
// forceDataset is set, in which case it resolves to the pool's mirror
// Dataset.
func (s *Store) LookupURL(u *zfsurl.URL, forceDataset bool) (any, error) {
	if u.Filesystem == "" && u.Snapshot == "" && !forceDataset && !u.Trailing {
		return s.GetPool(u.Host, u.Pool)
	}
	return s.GetDataset(u.Host, u.Name())
}

// Parent returns d's containing filesystem Dataset, resolved via ZFSURL
// semantics.
func (s *Store) Parent(d *Dataset) (*Dataset, error) {
	u, err := zfsurl.Parse("zfs://" + d.Host + "/" + d.Name)
	if err != nil {
		return nil, err
	}
	if u.Filesystem == "" && u.Snapshot == "" {
		return nil, errors.New(errors.DatasetNotFound, "dataset has no parent filesystem")
	}
	return s.GetDataset(d.Host, u.Parent().Name())
}

// Children returns d's immediate path-depth children only.
func (s *Store) Children(d *Dataset) ([]*Dataset, error) {
	rows, err := s.db.Query("SELECT "+datasetCols+" FROM datasets WHERE host = ? AND avail_null = 0", d.Host)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	prefix := d.Name + "/"
	var out []*Dataset
	for rows.Next() {
		child, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		if !strings.HasPrefix(child.Name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(child.Name, prefix)
		if strings.Contains(rest, "/") {
			continue // not an immediate child
		}
		out = append(out, child)
	}
	return out, rows.Err()
}

// Snapshots returns d's snapshots ascending by creation time.
func (s *Store) Snapshots(d *Dataset) ([]*Dataset, error) {
	rows, err := s.db.Query("SELECT "+datasetCols+" FROM datasets WHERE host = ? AND avail_null = 1 AND name LIKE ?",
		d.Host, d.Name+"@%")
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		snap, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Creation.Before(out[j].Creation) })
	return out, rows.Err()
}

// LatestSnapshot returns d's newest snapshot, or NotFound if d has none.
func (s *Store) LatestSnapshot(d *Dataset) (*Dataset, error) {
	snaps, err := s.Snapshots(d)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errors.New(errors.SnapshotNotFound, d.Name)
	}
	return snaps[len(snaps)-1], nil
}

// Pool returns the Pool mirroring d's (host, pool-name) pair.
func (s *Store) Pool(d *Dataset) (*Pool, error) {
	poolName := d.Name
	if idx := strings.Index(poolName, "/"); idx >= 0 {
		poolName = poolName[:idx]
	}
	if idx := strings.Index(poolName, "@"); idx >= 0 {
		poolName = poolName[:idx]
	}
	return s.GetPool(d.Host, poolName)
}

// IsCompressed reports whether d has compression enabled: true iff
// compress != "off"; a snapshot defers to its parent's setting.
func (s *Store) IsCompressed(d *Dataset) (bool, error) {
	if d.IsSnapshot() {
		parent, err := s.Parent(d)
		if err != nil {
			return false, err
		}
		return s.IsCompressed(parent)
	}
	return d.Compression != "" && d.Compression != "off", nil
}

// PropertyIsInherited reports whether d's named property equals its
// parent's value for the same property.
func (s *Store) PropertyIsInherited(d *Dataset, name string) (bool, error) {
	parent, err := s.Parent(d)
	if err != nil {
		if _, ok := errors.GetCode(err); ok {
			return false, nil
		}
		return false, err
	}
	v, ok := d.Properties[name]
	pv, pok := parent.Properties[name]
	return ok == pok && v == pv, nil
}

// FilesystemsByBasename returns non-snapshot datasets on hosts other than
// excludeHost whose final path component equals basename, ordered by avail
// descending.
func (s *Store) FilesystemsByBasename(basename, excludeHost string) ([]*Dataset, error) {
	rows, err := s.db.Query(
		"SELECT "+datasetCols+" FROM datasets WHERE avail_null = 0 AND host != ? ORDER BY avail DESC",
		excludeHost)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		if basenameOf(d.Name) == basename {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

// PoolsWithFreeAtLeast returns pools on hosts other than excludeHost with
// free space >= min bytes, ordered by free descending, for destination
// candidate enumeration.
func (s *Store) PoolsWithFreeAtLeast(min int64, excludeHost string) ([]*Pool, error) {
	rows, err := s.db.Query(
		"SELECT "+poolCols+" FROM pools WHERE free >= ? AND host != ? ORDER BY free DESC", min, excludeHost)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	var out []*Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Descendants returns every non-snapshot dataset strictly beneath d, at any
// depth, used by the sender's "configured" resolution mode to walk a source
// filesystem for zfs_receive_url overrides.
func (s *Store) Descendants(d *Dataset) ([]*Dataset, error) {
	rows, err := s.db.Query("SELECT "+datasetCols+" FROM datasets WHERE host = ? AND avail_null = 0", d.Host)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	prefix := d.Name + "/"
	var out []*Dataset
	for rows.Next() {
		child, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		if strings.HasPrefix(child.Name, prefix) {
			out = append(out, child)
		}
	}
	return out, rows.Err()
}

func basenameOf(name string) string {
	name = strings.TrimSuffix(name, "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
