package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates logDir if needed and opens logDir/runs.db.
func Open(logDir string) (*sql.DB, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return OpenDB(filepath.Join(logDir, "runs.db"))
}

func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		timestamp      INTEGER NOT NULL,
		operation      TEXT NOT NULL,
		backend_kind   TEXT,
		model          TEXT,
		transport      TEXT,
		requested      INTEGER,
		received       INTEGER,
		ranking        TEXT,
		label          TEXT,
		confidence     REAL,
		category       TEXT,
		extraction_tag TEXT,
		repair         INTEGER,
		fallback       INTEGER,
		degraded       INTEGER,
		duration_ms    INTEGER,
		record         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
	`

	_, err := db.Exec(schema)
	return err
}
