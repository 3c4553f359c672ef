// Package index implements the durable, embedded per-file state store
// that hands off work between the scanner and the transfer pipeline, and
// that serves as the resume state across process invocations.
package index

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Status is the lifecycle state of a FileRecord's most recent transfer.
type Status string

// The only two statuses a FileRecord can hold.
const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
)

// FileRecord is one row of the files table: the durable state hsync
// tracks for a single source path.
type FileRecord struct {
	SourcePath   string
	DestPath     string
	CreatedDate  int64
	ChangedDate  int64
	ModifiedDate int64
	Permissions  uint32
	Size         uint64
	Hash         string // empty means absent
	Status       Status
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
	source_path   TEXT PRIMARY KEY,
	dest_path     TEXT NOT NULL,
	created_date  INTEGER NOT NULL DEFAULT 0,
	changed_date  INTEGER NOT NULL DEFAULT 0,
	modified_date INTEGER NOT NULL DEFAULT 0,
	permissions   INTEGER NOT NULL DEFAULT 0,
	size          INTEGER NOT NULL DEFAULT 0,
	hash          TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
`

// Index wraps the sqlite-backed files table behind a single mutex: every
// call takes the lock, performs one operation, and releases it. Scan-time
// batching (BeginTx ... CommitTx/RollbackTx) holds the lock for the whole
// diff pass, which is an
// explicit, documented exception to "no long-held locks" made for
// performance (spec.md §4.1's hard requirement that the scan run inside a
// single transaction).
type Index struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "open index %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create schema in %q", path)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert inserts or replaces rec under the given status, preserving the
// existing hash when (source_path, modified_date, size) is unchanged from
// the stored row. Any change to modified_date or size clears the hash.
func (ix *Index) Upsert(rec FileRecord, status Status) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return upsertWith(ix.db, rec, status)
}

func upsertWith(q querier, rec FileRecord, status Status) error {
	var existingModified int64
	var existingSize uint64
	var existingHash string
	err := q.QueryRow(
		`SELECT modified_date, size, hash FROM files WHERE source_path = ?`,
		rec.SourcePath,
	).Scan(&existingModified, &existingSize, &existingHash)

	hash := rec.Hash
	switch {
	case err == sql.ErrNoRows:
		// New row: keep whatever hash the caller supplied (normally empty).
	case err != nil:
		return errors.Wrapf(err, "lookup existing record for %q", rec.SourcePath)
	default:
		if existingModified == rec.ModifiedDate && existingSize == rec.Size {
			hash = existingHash
		} else {
			hash = ""
		}
	}

	_, err = q.Exec(
		`INSERT OR REPLACE INTO files (
			source_path, dest_path, created_date, changed_date, modified_date,
			permissions, size, hash, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourcePath, rec.DestPath, rec.CreatedDate, rec.ChangedDate, rec.ModifiedDate,
		rec.Permissions, rec.Size, hash, string(status),
	)
	if err != nil {
		return errors.Wrapf(err, "upsert record for %q", rec.SourcePath)
	}
	return nil
}

// querier is the subset of *sql.DB / *sql.Tx that Upsert needs, letting
// the scan-time transaction reuse the same logic under one *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// MarkSynced sets status to synced and stores hash. It is a no-op if the
// row is missing.
func (ix *Index) MarkSynced(sourcePath, hash string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(
		`UPDATE files SET status = ?, hash = ? WHERE source_path = ?`,
		string(StatusSynced), hash, sourcePath,
	)
	if err != nil {
		return errors.Wrapf(err, "mark synced for %q", sourcePath)
	}
	return nil
}

// PendingCount returns the number of rows with status = pending.
func (ix *Index) PendingCount() (uint64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var n uint64
	err := ix.db.QueryRow(`SELECT COUNT(*) FROM files WHERE status = ?`, string(StatusPending)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count pending records")
	}
	return n, nil
}

// PendingTotalBytes returns the summed size of all pending rows.
func (ix *Index) PendingTotalBytes() (uint64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var n sql.NullInt64
	err := ix.db.QueryRow(`SELECT SUM(size) FROM files WHERE status = ?`, string(StatusPending)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "sum pending bytes")
	}
	if !n.Valid {
		return 0, nil
	}
	return uint64(n.Int64), nil
}

// ListPending returns all pending records, ordered largest-first. This
// maximizes pipeline overlap under a bandwidth cap; the ordering is not a
// contract callers may rely on (spec.md §9 leaves it unspecified).
func (ix *Index) ListPending() ([]FileRecord, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Query(
		`SELECT source_path, dest_path, created_date, changed_date, modified_date,
			permissions, size, hash, status
		FROM files WHERE status = ? ORDER BY size DESC`,
		string(StatusPending),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list pending records")
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var rec FileRecord
		var status string
		if err := rows.Scan(
			&rec.SourcePath, &rec.DestPath, &rec.CreatedDate, &rec.ChangedDate, &rec.ModifiedDate,
			&rec.Permissions, &rec.Size, &rec.Hash, &status,
		); err != nil {
			return nil, errors.Wrap(err, "scan pending record")
		}
		rec.Status = Status(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pending records")
	}
	return out, nil
}

// LookupHash returns the current hash for sourcePath, or ok=false if the
// row is missing or has no hash recorded.
func (ix *Index) LookupHash(sourcePath string) (hash string, ok bool, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	err = ix.db.QueryRow(`SELECT hash FROM files WHERE source_path = ?`, sourcePath).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "lookup hash for %q", sourcePath)
	}
	return hash, hash != "", nil
}

// ResetForRescan sets every row to pending in a single statement,
// preserving hashes.
func (ix *Index) ResetForRescan() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(`UPDATE files SET status = ?`, string(StatusPending))
	if err != nil {
		return errors.Wrap(err, "reset for rescan")
	}
	return nil
}

// Tx is a scan-time transaction handle: a single sqlite transaction used
// to batch every upsert of one scan pass, avoiding the orders-of-magnitude
// slowdown of row-by-row autocommit on large trees.
type Tx struct {
	tx *sql.Tx
}

// BeginTx starts a scan-time transaction and holds the index's mutex until
// CommitTx or RollbackTx is called.
func (ix *Index) BeginTx() (*Tx, error) {
	ix.mu.Lock()
	tx, err := ix.db.Begin()
	if err != nil {
		ix.mu.Unlock()
		return nil, errors.Wrap(err, "begin scan transaction")
	}
	return &Tx{tx: tx}, nil
}

// Upsert performs the same hash-preserving upsert as Index.Upsert, scoped
// to this transaction.
func (tx *Tx) Upsert(rec FileRecord, status Status) error {
	return upsertWith(tx.tx, rec, status)
}

// CommitTx commits the transaction and releases the index's mutex.
func (ix *Index) CommitTx(tx *Tx) error {
	defer ix.mu.Unlock()
	if err := tx.tx.Commit(); err != nil {
		return errors.Wrap(err, "commit scan transaction")
	}
	return nil
}

// RollbackTx aborts the transaction and releases the index's mutex.
func (ix *Index) RollbackTx(tx *Tx) error {
	defer ix.mu.Unlock()
	if err := tx.tx.Rollback(); err != nil {
		return errors.Wrap(err, "rollback scan transaction")
	}
	return nil
}
