// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsmodel

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	host TEXT NOT NULL,
	name TEXT NOT NULL,
	size INTEGER,
	free INTEGER,
	alloc INTEGER,
	cap INTEGER,
	health TEXT,
	dedup_ratio REAL,
	version TEXT,
	features TEXT,
	read_only INTEGER,
	updated_at INTEGER,
	PRIMARY KEY (host, name)
);

CREATE TABLE IF NOT EXISTS datasets (
	host TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT,
	creation INTEGER,
	used INTEGER,
	avail_null INTEGER,
	avail INTEGER,
	refer INTEGER,
	compression_ratio REAL,
	quota INTEGER,
	reservation INTEGER,
	used_ds INTEGER,
	used_child INTEGER,
	used_snap INTEGER,
	compression TEXT,
	properties TEXT,
	updated_at INTEGER,
	PRIMARY KEY (host, name)
);
CREATE INDEX IF NOT EXISTS idx_datasets_host ON datasets(host);
`

// Store is the ZFS state store: a sqlite-backed relational mirror of
// every observed host's pools and datasets.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens (creating if absent) the sqlite database at dsn and applies
// the schema. The schema is small and fixed, so it lives inline rather
// than in embedded migration files.
func Open(dsn string, logCfg logger.Config) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	l, err := logger.NewTag(logCfg, "zfsmodel")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	return &Store{db: db, log: l}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMap(raw string) map[string]string {
	m := map[string]string{}
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// chunkSize bounds the IN (...) list of one delete statement so a large
// sync never builds an oversized query.
const chunkSize = 50

func chunks(items []string, size int) [][]string {
	var out [][]string
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// SyncPools applies the sync sequence for a host's pool inventory:
// upsert every supplied pool, then delete the pools absent from the sample.
// If pools is empty the delete step is refused with a warning (the "safety
// rule" distinguishing an empty sample from total absence).
func (s *Store) SyncPools(host string, pools []Pool, now time.Time) error {
	if len(pools) == 0 {
		s.log.Warn("refusing to delete pools on empty sync sample", "host", host)
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.CommitTransient)
	}
	defer tx.Rollback()

	names := make([]string, 0, len(pools))
	for _, p := range pools {
		features, err := encodeMap(p.Features)
		if err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
		_, err = tx.Exec(`INSERT INTO pools
			(host, name, size, free, alloc, cap, health, dedup_ratio, version, features, read_only, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(host, name) DO UPDATE SET
			size=excluded.size, free=excluded.free, alloc=excluded.alloc, cap=excluded.cap,
			health=excluded.health, dedup_ratio=excluded.dedup_ratio, version=excluded.version,
			features=excluded.features, read_only=excluded.read_only, updated_at=excluded.updated_at`,
			host, p.Name, p.Size, p.Free, p.Alloc, p.Cap, p.Health, p.DedupRatio, p.Version,
			features, boolToInt(p.ReadOnly), now.Unix())
		if err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
		names = append(names, p.Name)
	}

	if err := deleteAbsent(tx, "pools", host, names); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}

// SyncDatasets applies the same sequence for a host's dataset inventory
// (filesystems, volumes, and snapshots share one table).
func (s *Store) SyncDatasets(host string, datasets []Dataset, now time.Time) error {
	if len(datasets) == 0 {
		s.log.Warn("refusing to delete datasets on empty sync sample", "host", host)
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.CommitTransient)
	}
	defer tx.Rollback()

	names := make([]string, 0, len(datasets))
	for _, d := range datasets {
		props, err := encodeMap(d.Properties)
		if err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
		_, err = tx.Exec(`INSERT INTO datasets
			(host, name, type, creation, used, avail_null, avail, refer, compression_ratio,
			 quota, reservation, used_ds, used_child, used_snap, compression, properties, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(host, name) DO UPDATE SET
			type=excluded.type, creation=excluded.creation, used=excluded.used,
			avail_null=excluded.avail_null, avail=excluded.avail, refer=excluded.refer,
			compression_ratio=excluded.compression_ratio, quota=excluded.quota,
			reservation=excluded.reservation, used_ds=excluded.used_ds,
			used_child=excluded.used_child, used_snap=excluded.used_snap,
			compression=excluded.compression, properties=excluded.properties,
			updated_at=excluded.updated_at`,
			host, d.Name, d.Type, d.Creation.Unix(), d.Used, boolToInt(d.AvailNull), d.Avail,
			d.Refer, d.CompressionRatio, d.Quota, d.Reservation, d.UsedDS, d.UsedChild,
			d.UsedSnap, d.Compression, props, now.Unix())
		if err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
		names = append(names, d.Name)
	}

	if err := deleteAbsent(tx, "datasets", host, names); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}

// deleteAbsent removes rows in table for host whose name is not in keep,
// chunking the NOT IN exclusion list at chunkSize per statement.
func deleteAbsent(tx *sql.Tx, table, host string, keep []string) error {
	rows, err := tx.Query(fmt.Sprintf("SELECT name FROM %s WHERE host = ?", table), host)
	if err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	keepSet := make(map[string]bool, len(keep))
	for _, n := range keep {
		keepSet[n] = true
	}
	var toDelete []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return errors.Wrap(err, errors.CommitFailed)
		}
		if !keepSet[name] {
			toDelete = append(toDelete, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}

	for _, chunk := range chunks(toDelete, chunkSize) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, host)
		for _, n := range chunk {
			args = append(args, n)
		}
		q := fmt.Sprintf("DELETE FROM %s WHERE host = ? AND name IN (%s)", table, placeholders(len(chunk)))
		if _, err := tx.Exec(q, args...); err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
	}
	return nil
}
