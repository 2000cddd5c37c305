// Package statedb persists launcher state in SQLite: which Slack messages
// have been processed, which agent sessions are running, and the poll
// checkpoint. WAL mode plus a busy timeout keep it safe if a second launcher
// is started by mistake.
package statedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// DB wraps the launcher's SQLite database.
type DB struct {
	db *sql.DB
}

// Launch records one Slack command turned into a running tmux session.
type Launch struct {
	// ThreadTS is the Slack timestamp of the originating command message;
	// acknowledgements and completion summaries are threaded under it.
	ThreadTS string

	// Session is the tmux session name.
	Session string

	LogFile string
	Task    string
	Started time.Time
}

// Open creates or opens the database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: busy timeout: %w", err)
	}

	return &DB{db: db}, nil
}

// Close checkpoints WAL and closes the database.
func (s *DB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Migrate creates tables if they don't exist.
func (s *DB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS launches (
			thread_ts  TEXT PRIMARY KEY,
			session    TEXT NOT NULL,
			log_file   TEXT NOT NULL DEFAULT '',
			task       TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create launches: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS processed (
			ts      TEXT PRIMARY KEY,
			seen_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("statedb: create processed: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// --- Launch CRUD ---

// SaveLaunch inserts or replaces a launch record.
func (s *DB) SaveLaunch(l *Launch) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO launches (thread_ts, session, log_file, task, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.ThreadTS, l.Session, l.LogFile, l.Task, l.Started.Unix())
	return err
}

// LoadLaunches returns all active launches ordered by start time.
func (s *DB) LoadLaunches() ([]*Launch, error) {
	rows, err := s.db.Query(`
		SELECT thread_ts, session, log_file, task, started_at
		FROM launches ORDER BY started_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Launch
	for rows.Next() {
		l := &Launch{}
		var startedUnix int64
		if err := rows.Scan(&l.ThreadTS, &l.Session, &l.LogFile, &l.Task, &startedUnix); err != nil {
			return nil, err
		}
		l.Started = time.Unix(startedUnix, 0)
		result = append(result, l)
	}
	return result, rows.Err()
}

// DeleteLaunch removes a launch record once its session has been reaped.
func (s *DB) DeleteLaunch(threadTS string) error {
	_, err := s.db.Exec("DELETE FROM launches WHERE thread_ts = ?", threadTS)
	return err
}

// --- Processed messages ---

// MarkProcessed records a message timestamp as handled.
func (s *DB) MarkProcessed(ts string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO processed (ts, seen_at) VALUES (?, ?)",
		ts, time.Now().Unix(),
	)
	return err
}

// IsProcessed reports whether a message timestamp was already handled.
func (s *DB) IsProcessed(ts string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM processed WHERE ts = ?", ts).Scan(&count)
	return count > 0, err
}

// TrimProcessed keeps only the newest keep rows in the processed table.
func (s *DB) TrimProcessed(keep int) error {
	_, err := s.db.Exec(`
		DELETE FROM processed WHERE ts NOT IN (
			SELECT ts FROM processed ORDER BY seen_at DESC, ts DESC LIMIT ?
		)
	`, keep)
	return err
}

// --- Metadata ---

// SetMeta sets a key-value pair in the metadata table.
func (s *DB) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta gets a value from the metadata table. Returns "" if not found.
func (s *DB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetLastChecked stores the newest channel message timestamp the launcher has
// examined. Messages at or before it are skipped on the next poll.
func (s *DB) SetLastChecked(ts float64) error {
	return s.SetMeta("last_checked", strconv.FormatFloat(ts, 'f', -1, 64))
}

// LastChecked returns the poll checkpoint, 0 when unset.
func (s *DB) LastChecked() (float64, error) {
	val, err := s.GetMeta("last_checked")
	if err != nil || val == "" {
		return 0, err
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("statedb: bad last_checked %q: %w", val, err)
	}
	return f, nil
}
