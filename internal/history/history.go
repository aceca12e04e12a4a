// Package history records the commands run in each session so a restart
// can recall the previous command when a pane's configured command text
// is empty.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session has no recorded commands.
var ErrNotFound = errors.New("not found")

// Entry is one recorded command.
type Entry struct {
	SessionID  string
	Command    string
	RecordedAt time.Time
}

// Store is a sqlite-backed command history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path, applying the schema
// if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS command_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	command     TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_history_session
	ON command_history(session_id, id);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one command for a session. Empty commands are ignored.
func (s *Store) Record(ctx context.Context, sessionID, command string) error {
	if command == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_history(session_id, command, recorded_at) VALUES (?, ?, ?)`,
		sessionID, command, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// Last returns the most recently recorded command for a session.
func (s *Store) Last(ctx context.Context, sessionID string) (string, error) {
	var command string
	err := s.db.QueryRowContext(ctx,
		`SELECT command FROM command_history WHERE session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID).Scan(&command)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("session %s history: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query history: %w", err)
	}
	return command, nil
}

// Prune deletes entries older than keep. Sessions are ephemeral, so old
// rows only matter until their panes have been restarted once.
func (s *Store) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-keep).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM command_history WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Recent returns up to limit entries across all sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, command, recorded_at FROM command_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.SessionID, &e.Command, &ts); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
