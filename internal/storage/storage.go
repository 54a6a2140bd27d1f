package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const SchemaVersion = 1

// Store is the relational half of the memory subsystem: one row of
// importance/recency metadata per memory record, plus an independent
// append-only activity log. It is deliberately unaware of the vector index.
//
// Every operation is a single short statement against the shared pool; no
// transactions span calls, so a write is visible to the next read from any
// goroutine.
type Store struct {
	conn *sql.DB
}

// Row is one metadata record keyed by memory ID.
type Row struct {
	ID           string
	Importance   int
	CreatedAt    time.Time
	LastAccessed time.Time
}

// LogEntry is one activity log line.
type LogEntry struct {
	ID        int64
	Action    string
	Details   string
	Timestamp time.Time
}

// Open opens (or creates) the metadata database and applies migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=10000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies schema migrations tracked via PRAGMA user_version.
func (s *Store) migrate() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	for version < SchemaVersion {
		version++
		switch version {
		case 1:
			if err := applySchemaV1(tx); err != nil {
				return fmt.Errorf("apply schema v%d: %w", version, err)
			}
		default:
			return fmt.Errorf("unknown schema version: %d", version)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func applySchemaV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			id TEXT PRIMARY KEY,
			importance INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			last_accessed DATETIME NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			details TEXT,
			timestamp DATETIME NOT NULL
		)
	`)
	return err
}

// PutMetadata inserts the metadata row for a new memory record.
// created_at and last_accessed both default to now. Re-putting an existing
// ID resets both, matching last-write-wins on the vector side.
func (s *Store) PutMetadata(id string, importance int) error {
	now := time.Now().UTC()
	_, err := s.conn.Exec(`
		INSERT INTO metadata (id, importance, created_at, last_accessed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET importance = excluded.importance,
			created_at = excluded.created_at, last_accessed = excluded.last_accessed
	`, id, importance, now, now)
	if err != nil {
		return fmt.Errorf("put metadata: %w", err)
	}
	return nil
}

// Touch bulk-updates last_accessed to now for the given IDs. Called for the
// records that win a retrieval ranking (recency reinforcement).
func (s *Store) Touch(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE metadata SET last_accessed = ? WHERE id IN (%s)",
		placeholders(len(ids)),
	)
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.conn.Exec(query, args...); err != nil {
		return fmt.Errorf("touch metadata: %w", err)
	}
	return nil
}

// Fetch bulk-loads metadata rows. IDs without a row are simply absent from
// the result; that is not an error.
func (s *Store) Fetch(ids []string) (map[string]Row, error) {
	result := make(map[string]Row, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(
		"SELECT id, importance, created_at, last_accessed FROM metadata WHERE id IN (%s)",
		placeholders(len(ids)),
	)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Importance, &row.CreatedAt, &row.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		result[row.ID] = row
	}
	return result, rows.Err()
}

// AllIDs returns every metadata row ID. Used for enumeration-based deletion
// filters the vector backend cannot express natively.
func (s *Store) AllIDs() ([]string, error) {
	rows, err := s.conn.Query("SELECT id FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("list metadata ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the metadata rows for the given IDs.
func (s *Store) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM metadata WHERE id IN (%s)", placeholders(len(ids)))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.conn.Exec(query, args...); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	return nil
}

// CountRecords returns the number of metadata rows.
func (s *Store) CountRecords() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM metadata").Scan(&count); err != nil {
		return 0, fmt.Errorf("count metadata: %w", err)
	}
	return count, nil
}

// AppendLog writes one activity log entry.
func (s *Store) AppendLog(action, details string) error {
	_, err := s.conn.Exec(
		"INSERT INTO activity_log (action, details, timestamp) VALUES (?, ?, ?)",
		action, details, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// LogsForDay returns all activity entries whose timestamp falls on the given
// calendar date ("2006-01-02"), ordered by time ascending.
func (s *Store) LogsForDay(date string) ([]LogEntry, error) {
	rows, err := s.conn.Query(`
		SELECT id, action, details, timestamp
		FROM activity_log
		WHERE date(timestamp) = ?
		ORDER BY timestamp ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var details sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Action, &details, &entry.Timestamp); err != nil {
			return nil, err
		}
		entry.Details = details.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
