// Package store persists historical prices and per-symbol collection
// metadata in SQLite. The upsert path is optimistic: concurrent writers
// for the same symbol interleave and the last write wins per date row,
// which is acceptable for idempotent OHLCV data.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// DefaultFailureThreshold deactivates a symbol after this many
// consecutive failed collections.
const DefaultFailureThreshold = 5

// Store wraps the SQLite database holding prices and metadata.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	// FailureThreshold flips a symbol inactive once consecutive
	// failures reach it.
	FailureThreshold int
}

// Open opens (or creates) the database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent reads while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db, FailureThreshold: DefaultFailureThreshold}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS historical_prices (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			date       TEXT NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL NOT NULL,
			volume     INTEGER,
			source     TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_symbol ON historical_prices(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_date ON historical_prices(date)`,

		`CREATE TABLE IF NOT EXISTS collection_metadata (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol               TEXT NOT NULL UNIQUE,
			last_attempt_at      INTEGER,
			last_success_at      INTEGER,
			earliest_date        TEXT,
			latest_date          TEXT,
			point_count          INTEGER NOT NULL DEFAULT 0,
			status               TEXT,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			priority             INTEGER NOT NULL DEFAULT 0,
			active               INTEGER NOT NULL DEFAULT 1,
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_priority ON collection_metadata(priority)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
