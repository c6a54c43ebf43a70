// Package session provides a SQLite-backed conversation session store.
// Sessions are created explicitly, turns are appended per session, and
// history is replayed oldest-first into the model context on subsequent
// questions. Sessions survive server restarts.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrSessionNotFound is returned when an operation targets a session id that
// was never created (or whose database was removed).
var ErrSessionNotFound = errors.New("session not found")

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn sent by the person asking questions.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the model.
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a session.
type Turn struct {
	// Role is the author of the turn.
	Role Role
	// Content is the text of the turn.
	Content string
	// Partial marks an assistant turn whose generation was interrupted.
	// The stored content is the prefix produced before the failure.
	Partial bool
	// CreatedAt is when the turn was persisted.
	CreatedAt time.Time
}

// Store persists sessions and their turns. Implementations must be safe for
// concurrent use; appends to the same session must never lose turns.
type Store interface {
	// Create allocates a new session and returns its id.
	Create(ctx context.Context) (string, error)
	// Exists reports whether the given session id was created.
	Exists(ctx context.Context, id string) (bool, error)
	// Append adds a turn to an existing session. Returns ErrSessionNotFound
	// when the session does not exist.
	Append(ctx context.Context, id string, turn Turn) error
	// History returns up to n of the most recent turns for the session,
	// ordered oldest-first so they can be prepended to the model message
	// slice directly. Returns ErrSessionNotFound for unknown ids.
	History(ctx context.Context, id string, n int) ([]Turn, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.askdoc/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".askdoc")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("session: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under
	// concurrent appends; SQLite serialises the writes, which is exactly
	// the per-session ordering guarantee callers rely on.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS turns (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL REFERENCES sessions(id),
    role        TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content     TEXT    NOT NULL,
    partial     INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_turns_session_created
    ON turns (session_id, created_at, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// Create allocates a new session and returns its id.
func (s *SQLiteStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	const q = `INSERT INTO sessions (id, created_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	return id, nil
}

// Exists reports whether the given session id was created.
func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT 1 FROM sessions WHERE id = ?`
	var one int
	err := s.db.QueryRowContext(ctx, q, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: exists %q: %w", id, err)
	}
	return true, nil
}

// Append adds a turn to an existing session. The existence check and the
// insert happen in one statement, so a session deleted between a caller's
// check and its append cannot produce an orphan turn.
func (s *SQLiteStore) Append(ctx context.Context, id string, turn Turn) error {
	const q = `
INSERT INTO turns (session_id, role, content, partial, created_at)
SELECT id, ?, ?, ?, ? FROM sessions WHERE id = ?`

	partial := 0
	if turn.Partial {
		partial = 1
	}
	res, err := s.db.ExecContext(ctx, q, string(turn.Role), turn.Content, partial, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("session: append to %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: append rows affected: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// History returns up to n of the most recent turns for the session, ordered
// oldest-first. Uses a subquery to select the tail then re-order for injection.
func (s *SQLiteStore) History(ctx context.Context, id string, n int) ([]Turn, error) {
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	const q = `
SELECT role, content, partial, created_at FROM (
    SELECT id, role, content, partial, created_at
    FROM   turns
    WHERE  session_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, id, n)
	if err != nil {
		return nil, fmt.Errorf("session: history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts int64
		var role string
		var partial int
		if err := rows.Scan(&role, &t.Content, &partial, &ts); err != nil {
			return nil, fmt.Errorf("session: history scan: %w", err)
		}
		t.Role = Role(role)
		t.Partial = partial != 0
		t.CreatedAt = time.Unix(ts, 0)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: history rows: %w", err)
	}
	return turns, nil
}

// Ping verifies the database connection; used by readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	return nil
}
