// Package sqlite provides SQLite-based persistent storage for Pulse.
// It is the record source the report service reads from and the sink that
// imports write to. Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// dateLayout is how calendar dates are stored.
const dateLayout = "2006-01-02"

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/pulse.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "pulse.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// One row per calendar date; the date is the key.
		`CREATE TABLE IF NOT EXISTS daily_records (
			date                 TEXT PRIMARY KEY,
			connections_sent     INTEGER NOT NULL DEFAULT 0,
			connections_accepted INTEGER NOT NULL DEFAULT 0,
			messages_sent        INTEGER NOT NULL DEFAULT 0,
			interested_responses INTEGER NOT NULL DEFAULT 0,
			links_sent           INTEGER NOT NULL DEFAULT 0,
			follow_up_1          INTEGER NOT NULL DEFAULT 0,
			follow_up_2          INTEGER NOT NULL DEFAULT 0,
			follow_up_3          INTEGER NOT NULL DEFAULT 0,
			follow_up_4          INTEGER NOT NULL DEFAULT 0,
			conversions          INTEGER NOT NULL DEFAULT 0,
			notes                TEXT NOT NULL DEFAULT '',
			batch_id             TEXT,
			updated_at           INTEGER NOT NULL
		)`,

		// Habit columns, in display order.
		`CREATE TABLE IF NOT EXISTS habits (
			name     TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS habit_marks (
			date     TEXT NOT NULL,
			habit    TEXT NOT NULL REFERENCES habits(name) ON DELETE CASCADE,
			done     BOOLEAN NOT NULL DEFAULT 0,
			batch_id TEXT,
			PRIMARY KEY (date, habit)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habit_marks_habit ON habit_marks(habit)`,

		// Import audit log
		`CREATE TABLE IF NOT EXISTS import_batches (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			row_count  INTEGER NOT NULL,
			skipped    INTEGER NOT NULL,
			malformed  INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_created ON import_batches(created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
