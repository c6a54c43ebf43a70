// Package registry tracks which files have been ingested into the vector
// index. The registry is the source of truth for valid collection names: a
// question may only target collections that appear here. Entries are
// append-only; re-ingesting a file updates its content hash in place.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one ingested file.
type Entry struct {
	// Name is the file name, which doubles as the collection name.
	Name string
	// SHA256 is the hex digest of the file content at ingestion time.
	SHA256 string
	// CreatedAt is when the file was first ingested.
	CreatedAt time.Time
}

// FileRegistry records ingested files and answers collection-name lookups.
// Implementations must be safe for concurrent use.
type FileRegistry interface {
	// Register records a file with its content hash. Re-registering an
	// existing name updates the hash.
	Register(ctx context.Context, name, sha256 string) error
	// Contains reports whether the named file has been ingested.
	Contains(ctx context.Context, name string) (bool, error)
	// Hash returns the stored content hash for the named file, or "" when
	// the file is not registered.
	Hash(ctx context.Context, name string) (string, error)
	// List returns all ingested files ordered by name.
	List(ctx context.Context) ([]Entry, error)
	// Close releases any resources held by the registry.
	Close() error
}

// SQLiteRegistry is a FileRegistry backed by a local SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the file registry database.
// It resolves to ~/.askdoc/registry.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("registry: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".askdoc")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("registry: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "registry.db"), nil
}

// Open opens (or creates) a SQLiteRegistry at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteRegistry, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	r := &SQLiteRegistry{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// migrate creates the schema if it does not already exist.
func (r *SQLiteRegistry) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS files (
    name        TEXT PRIMARY KEY,
    sha256      TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("registry: migrate: %w", err)
	}
	return nil
}

// Register records a file with its content hash. Re-registering an existing
// name updates the hash but keeps the original created_at.
func (r *SQLiteRegistry) Register(ctx context.Context, name, sha256 string) error {
	const q = `
INSERT INTO files (name, sha256, created_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET sha256 = excluded.sha256`
	if _, err := r.db.ExecContext(ctx, q, name, sha256, time.Now().Unix()); err != nil {
		return fmt.Errorf("registry: register %q: %w", name, err)
	}
	return nil
}

// Contains reports whether the named file has been ingested.
func (r *SQLiteRegistry) Contains(ctx context.Context, name string) (bool, error) {
	const q = `SELECT 1 FROM files WHERE name = ?`
	var one int
	err := r.db.QueryRowContext(ctx, q, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("registry: contains %q: %w", name, err)
	}
	return true, nil
}

// Hash returns the stored content hash for the named file, or "" when the
// file is not registered.
func (r *SQLiteRegistry) Hash(ctx context.Context, name string) (string, error) {
	const q = `SELECT sha256 FROM files WHERE name = ?`
	var h string
	err := r.db.QueryRowContext(ctx, q, name).Scan(&h)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("registry: hash %q: %w", name, err)
	}
	return h, nil
}

// List returns all ingested files ordered by name.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Entry, error) {
	const q = `SELECT name, sha256, created_at FROM files ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Name, &e.SHA256, &ts); err != nil {
			return nil, fmt.Errorf("registry: list scan: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: list rows: %w", err)
	}
	return entries, nil
}

// Ping verifies the database connection; used by readiness probes.
func (r *SQLiteRegistry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database connection pool.
func (r *SQLiteRegistry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("registry: close: %w", err)
	}
	return nil
}
