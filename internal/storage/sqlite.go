// Package storage persists the routing journal: one record per terminal
// outcome. The journal is observational only; routing decisions never
// read from it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements the routing history using SQLite.
type Journal struct {
	db     *sql.DB
	dbPath string
}

// NewJournal opens (or creates) the journal database at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("journal path must not be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	return &Journal{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Migrate creates the journal schema when missing.
func (j *Journal) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		route TEXT NOT NULL,
		destination TEXT,
		doc_type TEXT,
		supplier TEXT,
		confidence REAL,
		reason TEXT,
		processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_processed_at ON outcomes(processed_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_route ON outcomes(route);
	`

	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return nil
}
