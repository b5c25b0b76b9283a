// Package querylog records the queries served by the reference sales API.
package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one served query.
type Entry struct {
	ID         int64  `json:"id"`
	TraceID    string `json:"trace_id"`
	Statistic  string `json:"stat"`
	Cohort     string `json:"cohort"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"ts"`
}

// Store appends and lists entries in a SQLite table.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens (creating if needed) the log database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("query log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS served_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			stat TEXT NOT NULL,
			cohort TEXT NOT NULL,
			rows INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_served_queries_ts ON served_queries(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init query log schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes e. A zero timestamp is set to now.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("query log not initialized")
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO served_queries(trace_id, stat, cohort, rows, duration_ms, error, ts) VALUES(?,?,?,?,?,?,?)`,
		e.TraceID, e.Statistic, e.Cohort, e.Rows, e.DurationMS, nullString(e.Error), e.Timestamp)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent lists up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("query log not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_id, stat, cohort, rows, duration_ms, error, ts FROM served_queries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e      Entry
			errStr sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Statistic, &e.Cohort, &e.Rows, &e.DurationMS, &errStr, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Error = errStr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
