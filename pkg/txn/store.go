// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// schema holds the Transaction, TransactionFile, and SQLPackage
// entities, inlined the same way pkg/zfsmodel keeps its schema fixed and
// embedded rather than pulling in a migration framework.
const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                      TEXT PRIMARY KEY,
	host                    TEXT NOT NULL,
	type_name               TEXT NOT NULL,
	in_package_ref          TEXT NOT NULL,
	in_package_stable_since INTEGER NOT NULL,
	out_package_ref         TEXT NOT NULL DEFAULT '',
	approved_by_login       TEXT NOT NULL DEFAULT '',
	percent_done            REAL,
	spooled_at              INTEGER NOT NULL,
	started_at              INTEGER,
	finished_at             INTEGER,
	error                   TEXT NOT NULL DEFAULT '',
	comment                 TEXT NOT NULL DEFAULT '',
	reason                  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_inpkg ON transactions(in_package_ref, type_name);

CREATE TABLE IF NOT EXISTS transaction_files (
	transaction_id TEXT NOT NULL,
	path           TEXT NOT NULL,
	size           INTEGER NOT NULL,
	uid            INTEGER NOT NULL,
	gid            INTEGER NOT NULL,
	mode           INTEGER NOT NULL,
	PRIMARY KEY (transaction_id, path)
);

CREATE TABLE IF NOT EXISTS sql_packages (
	host          TEXT NOT NULL,
	root_path     TEXT NOT NULL,
	package_path  TEXT NOT NULL,
	managed_at    INTEGER NOT NULL,
	unmanaged_at  INTEGER,
	stable_since  INTEGER NOT NULL,
	comment       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (host, root_path, package_path)
);
`

// Store persists Record, TransactionFile, and SQLPackage rows, and
// implements ProgressSink so a Transaction can report into it directly.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens (creating if absent) the sqlite database at dsn and applies
// the schema above.
func Open(dsn string, logCfg logger.Config) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	l, err := logger.NewTag(logCfg, "txn")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	return &Store{db: db, log: l}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ ProgressSink = (*Store)(nil)

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Put inserts or fully overwrites r (upsert on id).
func (s *Store) Put(r *Record) error {
	_, err := s.db.Exec(`INSERT INTO transactions
		(id, host, type_name, in_package_ref, in_package_stable_since, out_package_ref,
		 approved_by_login, percent_done, spooled_at, started_at, finished_at, error, comment, reason)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		host=excluded.host, type_name=excluded.type_name, in_package_ref=excluded.in_package_ref,
		in_package_stable_since=excluded.in_package_stable_since, out_package_ref=excluded.out_package_ref,
		approved_by_login=excluded.approved_by_login, percent_done=excluded.percent_done,
		spooled_at=excluded.spooled_at, started_at=excluded.started_at, finished_at=excluded.finished_at,
		error=excluded.error, comment=excluded.comment, reason=excluded.reason`,
		r.ID, r.Host, r.TypeName, r.InPackageRef, r.InPackageStableSince, r.OutPackageRef,
		r.ApprovedByLogin, nullableFloat(r.PercentDone), r.SpooledAt.Unix(),
		nullableUnix(r.StartedAt), nullableUnix(r.FinishedAt), r.Error, r.Comment, r.Reason)
	if err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}

// Update implements ProgressSink: it persists the current Record state,
// called at most every UpdateDBInterval plus unconditionally at begin/end.
func (s *Store) Update(ctx context.Context, r *Record, percentDone float64) error {
	return s.Put(r)
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var percentDone sql.NullFloat64
	var spooledAt int64
	var startedAt, finishedAt sql.NullInt64
	if err := row.Scan(&r.ID, &r.Host, &r.TypeName, &r.InPackageRef, &r.InPackageStableSince,
		&r.OutPackageRef, &r.ApprovedByLogin, &percentDone, &spooledAt, &startedAt, &finishedAt,
		&r.Error, &r.Comment, &r.Reason); err != nil {
		return nil, err
	}
	if percentDone.Valid {
		r.PercentDone = &percentDone.Float64
	}
	r.SpooledAt = time.Unix(spooledAt, 0).UTC()
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0).UTC()
		r.StartedAt = &t
	}
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const recordCols = "id, host, type_name, in_package_ref, in_package_stable_since, out_package_ref, " +
	"approved_by_login, percent_done, spooled_at, started_at, finished_at, error, comment, reason"

// Get returns the Record by id, or NotFound.
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow("SELECT "+recordCols+" FROM transactions WHERE id = ?", id)
	r, err := scanRecord(row)
	if err != nil {
		return nil, errors.New(errors.TransactionNotFound, id)
	}
	return r, nil
}

// UnfinishedUnqueued returns transactions for inPackageRef/typeName with
// finished_at IS NULL AND percent_done IS NULL, the "unfinished-unqueued"
// existence check used by the possibly-stable handler and the CanEnqueue
// gate: at most one un-finished, non-queued transaction may exist per
// (input-package, type) pair.
func (s *Store) UnfinishedUnqueued(inPackageRef, typeName string) ([]*Record, error) {
	rows, err := s.db.Query(
		"SELECT "+recordCols+` FROM transactions
		 WHERE in_package_ref = ? AND type_name = ? AND finished_at IS NULL AND percent_done IS NULL`,
		inPackageRef, typeName)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// PendingAuthorization returns transactions ready for the transaction-check
// task: finished_at IS NULL AND percent_done IS NULL AND approved_by_login
// NOT IN (NULL, '').
func (s *Store) PendingAuthorization() ([]*Record, error) {
	rows, err := s.db.Query(
		"SELECT " + recordCols + ` FROM transactions
		 WHERE finished_at IS NULL AND percent_done IS NULL AND approved_by_login != ''`)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// PriorTransfers returns every past transfer-type Record for inPackageRef,
// used to build a txn.TransferHistory for TransferPlugin.CanEnqueue.
func (s *Store) PriorTransfers(inPackageRef string) ([]*Record, error) {
	rows, err := s.db.Query(
		"SELECT "+recordCols+` FROM transactions WHERE in_package_ref = ? AND type_name = 'transfer'`,
		inPackageRef)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UnstartedByInPackageRef returns every transaction tied to inPackageRef
// that has not yet started (started_at IS NULL AND finished_at IS NULL),
// across all types: the candidate set for the removed-package handler's
// cancellation sweep.
func (s *Store) UnstartedByInPackageRef(inPackageRef string) ([]*Record, error) {
	rows, err := s.db.Query(
		"SELECT "+recordCols+` FROM transactions WHERE in_package_ref = ? AND started_at IS NULL AND finished_at IS NULL`,
		inPackageRef)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UnqueuedByInPackageRef returns unfinished, not-yet-queued transactions
// for inPackageRef across all types (finished_at IS NULL AND percent_done
// IS NULL), the changed-package handler's cancellation target: changed
// before queued.
func (s *Store) UnqueuedByInPackageRef(inPackageRef string) ([]*Record, error) {
	rows, err := s.db.Query(
		"SELECT "+recordCols+` FROM transactions WHERE in_package_ref = ? AND finished_at IS NULL AND percent_done IS NULL`,
		inPackageRef)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// List returns every persisted Record, newest spooled first. Backs the
// CLI's transaction listing.
func (s *Store) List() ([]*Record, error) {
	rows, err := s.db.Query("SELECT " + recordCols + " FROM transactions ORDER BY spooled_at DESC")
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Files returns the TransactionFile rows recorded for transactionID.
func (s *Store) Files(transactionID string) ([]TransactionFile, error) {
	rows, err := s.db.Query(`SELECT transaction_id, path, size, uid, gid, mode
		FROM transaction_files WHERE transaction_id = ? ORDER BY path ASC`, transactionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.DBUnreachable)
	}
	defer rows.Close()

	var out []TransactionFile
	for rows.Next() {
		var f TransactionFile
		if err := rows.Scan(&f.TransactionID, &f.Path, &f.Size, &f.UID, &f.GID, &f.Mode); err != nil {
			return nil, errors.Wrap(err, errors.DBUnreachable)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddFiles appends one TransactionFile row per file so operators can
// inspect a transaction's scope even after an error.
func (s *Store) AddFiles(transactionID string, files []TransactionFile) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.CommitTransient)
	}
	defer tx.Rollback()

	for _, f := range files {
		if _, err := tx.Exec(`INSERT INTO transaction_files (transaction_id, path, size, uid, gid, mode)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(transaction_id, path) DO UPDATE SET
			size=excluded.size, uid=excluded.uid, gid=excluded.gid, mode=excluded.mode`,
			transactionID, f.Path, f.Size, f.UID, f.GID, f.Mode); err != nil {
			return errors.Wrap(err, errors.CommitFailed)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}

// PutPackage upserts an SQLPackage by its (host, root_path, package_path)
// key.
func (s *Store) PutPackage(p *SQLPackage) error {
	_, err := s.db.Exec(`INSERT INTO sql_packages
		(host, root_path, package_path, managed_at, unmanaged_at, stable_since, comment)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(host, root_path, package_path) DO UPDATE SET
		managed_at=excluded.managed_at, unmanaged_at=excluded.unmanaged_at,
		stable_since=excluded.stable_since, comment=excluded.comment`,
		p.Host, p.RootPath, p.PackagePath, p.ManagedAt.Unix(), nullableUnix(p.UnmanagedAt),
		p.StableSince, p.Comment)
	if err != nil {
		return errors.Wrap(err, errors.CommitFailed)
	}
	return nil
}

// GetPackage returns the SQLPackage by its key, or NotFound.
func (s *Store) GetPackage(host, rootPath, packagePath string) (*SQLPackage, error) {
	row := s.db.QueryRow(`SELECT host, root_path, package_path, managed_at, unmanaged_at, stable_since, comment
		FROM sql_packages WHERE host = ? AND root_path = ? AND package_path = ?`,
		host, rootPath, packagePath)
	var p SQLPackage
	var managedAt int64
	var unmanagedAt sql.NullInt64
	if err := row.Scan(&p.Host, &p.RootPath, &p.PackagePath, &managedAt, &unmanagedAt, &p.StableSince, &p.Comment); err != nil {
		return nil, errors.New(errors.TransactionNotFound, host+":"+rootPath+":"+packagePath)
	}
	p.ManagedAt = time.Unix(managedAt, 0).UTC()
	if unmanagedAt.Valid {
		t := time.Unix(unmanagedAt.Int64, 0).UTC()
		p.UnmanagedAt = &t
	}
	return &p, nil
}
