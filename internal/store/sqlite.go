package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is stamped into PRAGMA user_version. A database carrying any other
// version was written by an incompatible build and is treated as structurally broken.
const schemaVersion = 1

// ErrSchema marks a structural mismatch in the transactional tier.
var ErrSchema = errors.New("sqlite tier: schema mismatch")

// SQLiteTier is the transactional tier backed by a single SQLite database.
// Opening is lazy: the database is created (or rejected) on first use, so the first
// write after a version mismatch may carry the recreate cost.
type SQLiteTier struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
}

// NewSQLiteTier returns a tier over the database at path without opening it yet.
func NewSQLiteTier(path string) *SQLiteTier {
	return &SQLiteTier{path: path}
}

// open prepares the database. Caller must hold t.mu.
func (t *SQLiteTier) open() error {
	if t.db != nil {
		return nil
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", t.path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("set WAL mode: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return fmt.Errorf("%w: read user_version: %v", ErrSchema, err)
	}
	switch version {
	case schemaVersion:
		// current
	case 0:
		if err := migrate(db); err != nil {
			db.Close()
			return fmt.Errorf("%w: migrate: %v", ErrSchema, err)
		}
	default:
		db.Close()
		return fmt.Errorf("%w: user_version %d, want %d", ErrSchema, version, schemaVersion)
	}

	t.db = db
	return nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			part       TEXT NOT NULL,
			name       TEXT NOT NULL,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (part, name)
		)`,
		fmt.Sprintf("PRAGMA user_version=%d", schemaVersion),
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *SQLiteTier) Put(partition, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.open(); err != nil {
		return err
	}
	_, err := t.db.Exec(
		`INSERT INTO kv (part, name, value, updated_at) VALUES (?,?,?,?)
		 ON CONFLICT(part, name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		partition, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", partition, key, err)
	}
	return nil
}

func (t *SQLiteTier) Get(partition, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.open(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := t.db.QueryRow(`SELECT value FROM kv WHERE part=? AND name=?`, partition, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", partition, key, err)
	}
	return value, true, nil
}

func (t *SQLiteTier) Delete(partition, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.open(); err != nil {
		return err
	}
	if _, err := t.db.Exec(`DELETE FROM kv WHERE part=? AND name=?`, partition, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", partition, key, err)
	}
	return nil
}

// Recreate discards the database files and rebuilds the schema from scratch.
func (t *SQLiteTier) Recreate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db != nil {
		t.db.Close()
		t.db = nil
	}
	for _, p := range []string{t.path, t.path + "-wal", t.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	log.Printf("[WARN] sqlite tier recreated: %s", t.path)
	return t.open()
}

func (t *SQLiteTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}
