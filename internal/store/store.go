// Package store is the server's persistence substrate: a minimal
// SQLite-backed schema for the entities the resolver, sync-origin store
// and enrolment protocol need (§3). It deliberately does not attempt to
// be the full migrations/admin-CRUD layer the spec treats as an external
// collaborator — see SPEC_FULL.md §13.1.
package store

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle used by every other package in this
// module that needs persistence.
type Store struct {
	db *sql.DB
}

// Open initialises the SQLite database at path and ensures the schema
// exists, mirroring the teacher's db.Open pragma set.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			slog.Warn("pragma failed", "pragma", p, "error", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the raw handle for components (e.g. internal/syncorigin)
// that run their own queries against tables colocated in the same file.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
