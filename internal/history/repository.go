// Package history persists server phase and host power transitions as an
// operational audit trail.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/mcfleet/internal/database"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence interface for transition entries.
type Repository interface {
	Save(entry *Entry) error
	List(limit int) ([]Entry, error)
	ListBySubject(subject string, limit int) ([]Entry, error)
	Prune(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the history repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	r := &SQLiteRepository{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS transitions (
            id         INTEGER PRIMARY KEY AUTOINCREMENT,
            timestamp  TEXT    NOT NULL,
            kind       TEXT    NOT NULL,
            subject    TEXT    NOT NULL,
            name       TEXT    NOT NULL DEFAULT '',
            from_state TEXT    NOT NULL DEFAULT '',
            to_state   TEXT    NOT NULL DEFAULT '',
            reason     TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp);
        CREATE INDEX IF NOT EXISTS idx_transitions_subject ON transitions(subject);
    `
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new entry, stamping it with the current time if unset.
func (r *SQLiteRepository) Save(entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}

	result, err := r.db.Exec(`
        INSERT INTO transitions (timestamp, kind, subject, name, from_state, to_state, reason)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(timeLayout), entry.Kind, entry.Subject, entry.Name,
		entry.From, entry.To, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("history: insert failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: failed to get last insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns the most recent n entries, newest first.
func (r *SQLiteRepository) List(limit int) ([]Entry, error) {
	rows, err := r.db.Query(`
        SELECT id, timestamp, kind, subject, name, from_state, to_state, reason
        FROM transitions ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListBySubject returns the most recent n entries whose subject or name
// matches.
func (r *SQLiteRepository) ListBySubject(subject string, limit int) ([]Entry, error) {
	rows, err := r.db.Query(`
        SELECT id, timestamp, kind, subject, name, from_state, to_state, reason
        FROM transitions WHERE subject = ? OR name = ?
        ORDER BY timestamp DESC, id DESC LIMIT ?`, subject, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(olderThan time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.Exec(`DELETE FROM transitions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var timestampStr string
		err := rows.Scan(
			&entry.ID, &timestampStr, &entry.Kind, &entry.Subject, &entry.Name,
			&entry.From, &entry.To, &entry.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("history: scan failed: %w", err)
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
