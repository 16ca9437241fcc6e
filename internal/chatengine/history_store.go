package chatengine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryStore persists the line-editor's input history across sessions
// in a small sqlite database.
type HistoryStore struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS input_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	line TEXT NOT NULL,
	entered_at INTEGER NOT NULL
);`

// OpenHistoryStore opens (creating if needed) the history database at
// path.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("chatengine: open history db: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatengine: init history db: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Append records one entered line. Slash commands and blank lines are
// the caller's business to filter.
func (h *HistoryStore) Append(ctx context.Context, line string) error {
	_, err := h.db.ExecContext(ctx,
		"INSERT INTO input_history (line, entered_at) VALUES (?, ?)",
		line, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("chatengine: append history: %w", err)
	}
	return nil
}

// Recent returns up to n history lines, newest first.
func (h *HistoryStore) Recent(ctx context.Context, n int) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT line FROM input_history ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("chatengine: read history: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("chatengine: scan history: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (h *HistoryStore) Close() error { return h.db.Close() }
