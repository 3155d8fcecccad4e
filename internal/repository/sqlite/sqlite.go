package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
	_ "modernc.org/sqlite"

	"iscsidb/internal/repository"
)

const (
	dirMode  = 0o755
	fileMode = 0o666
)

// Table implements repository.Table on a single-table SQLite database.
// The exclusive lock is flock(2) on a sidecar "<path>.lock" file plus an
// in-process mutex, so goroutines sharing a Table serialize as well.
type Table struct {
	path string
	db   *sql.DB

	mu   sync.Mutex
	lock *os.File
}

var _ repository.Table = (*Table)(nil)

// Open opens the table stored at path, creating its directory and file on
// first use.
func Open(path string) (*Table, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}

	lock, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	t := &Table{path: path, db: db, lock: lock}
	if err := t.migrate(); err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to migrate database %s: %w", path, err)
	}

	return t, nil
}

// ensureFile creates the parent directory (0755) and an empty table file
// (0666) when they do not exist yet.
func ensureFile(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, fileMode)
		if err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if f != nil {
			f.Close()
		}
	}
	return nil
}

func (t *Table) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`

	_, err := t.db.Exec(schema)
	return err
}

// Path returns the table's file path
func (t *Table) Path() string {
	return t.path
}

// Get returns the value stored under key
func (t *Table) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := t.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: key %q", repository.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record %q: %w", key, err)
	}
	return value, nil
}

// Put inserts or replaces the value stored under key. Replacing keeps the
// entry's original scan position.
func (t *Table) Put(ctx context.Context, key string, value []byte) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO records (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write record %q: %w", key, err)
	}
	return nil
}

// Scan visits entries in insertion order
func (t *Table) Scan(ctx context.Context, fn func(key string, value []byte) bool) error {
	rows, err := t.db.QueryContext(ctx, `SELECT key, value FROM records ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		if !fn(key, value) {
			return nil
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating records: %w", err)
	}
	return nil
}

// Lock blocks until the exclusive lock is held
func (t *Table) Lock() error {
	t.mu.Lock()
	if err := flock(t.lock, unix.LOCK_EX); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("flock %s: %w", t.lock.Name(), err)
	}
	return nil
}

// Unlock releases the exclusive lock
func (t *Table) Unlock() error {
	defer t.mu.Unlock()
	if err := flock(t.lock, unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock %s: %w", t.lock.Name(), err)
	}
	return nil
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Close closes the database and its lock file
func (t *Table) Close() error {
	dbErr := t.db.Close()
	lockErr := t.lock.Close()
	return errors.Join(dbErr, lockErr)
}
