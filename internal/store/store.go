// Package store is the Metadata Store: the durable record of friends,
// sessions, the audit log, and rate-limit counters, backed by an
// embedded SQLite database (modernc.org/sqlite, pure Go, no cgo).
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a single SQLite connection. SQLite serializes writes on
// its own, which is what gives every operation here the
// "serialized by the store's own discipline" property the spec asks
// for without an extra application-level lock.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS friends (
	wxid        TEXT PRIMARY KEY,
	nickname    TEXT NOT NULL DEFAULT '',
	remark_name TEXT,
	permission  TEXT NOT NULL DEFAULT 'normal' CHECK (permission IN ('admin','trusted','normal','blocked')),
	added_at    TEXT NOT NULL,
	added_by    TEXT,
	notes       TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	wxid           TEXT NOT NULL REFERENCES friends(wxid),
	claude_session TEXT,
	created_at     TEXT NOT NULL,
	last_active    TEXT NOT NULL,
	message_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_wxid_last_active ON sessions(wxid, last_active);

CREATE TABLE IF NOT EXISTS audit_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	wxid           TEXT NOT NULL,
	nickname       TEXT NOT NULL DEFAULT '',
	direction      TEXT NOT NULL CHECK (direction IN ('in','out')),
	message        TEXT,
	claude_session TEXT,
	timestamp      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_wxid ON audit_log(wxid, timestamp);

CREATE TABLE IF NOT EXISTS rate_counters (
	wxid          TEXT NOT NULL,
	window_start  TEXT NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (wxid, window_start)
);
`

// Open opens (creating if necessary) the SQLite database file at path
// and applies the schema migration. The migration is idempotent
// (CREATE TABLE IF NOT EXISTS), matching the teacher's own
// lazy-init-on-open convention for its JSON-backed global config.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	// SQLite only supports one writer at a time; serialize all access
	// through a single connection so concurrent goroutines don't trip
	// over "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const timeLayout = "2006-01-02 15:04:05"
