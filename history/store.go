package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	level   TEXT    NOT NULL,
	state   TEXT    NOT NULL,
	message TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS events_ts ON events (ts);
`

// Entry is one recorded line.
type Entry struct {
	ID      int64
	Time    time.Time
	Kind    string
	Level   string
	State   string
	Message string
	// Source is "manager" for supervisor events or the gateway log file name.
	Source string
}

// Filter narrows a query. Zero values match everything.
type Filter struct {
	// Level is DEBUG, INFO, WARN or ERROR; "" or "ALL" matches any.
	Level string
	// Search is a case-insensitive substring of the message or level.
	Search string
	Limit  int
	Since  time.Time
}

// Matches applies f to e in memory.
func (f Filter) Matches(e Entry) bool {
	if lvl := normalizeLevel(f.Level); lvl != "" && lvl != "ALL" && normalizeLevel(e.Level) != lvl {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Message), q) && !strings.Contains(strings.ToLower(e.Level), q) {
			return false
		}
	}
	return true
}

func normalizeLevel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return "WARN"
	}
	return s
}

// Store persists supervisor events in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.WrapError(err, "opening history")
	}
	// One connection: SQLite has a single writer and :memory: is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, common.WrapError(err, "creating history schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one entry.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, kind, level, state, message) VALUES (?, ?, ?, ?, ?)`,
		e.Time.UnixNano(), e.Kind, normalizeLevel(e.Level), e.State, e.Message)
	if err != nil {
		return common.WrapError(err, "appending history")
	}
	return nil
}

// Recent returns matching entries, oldest first, capped at f.Limit (the
// newest are kept).
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = common.HistoryDefaultLimit
	}

	var where []string
	var args []any
	if lvl := normalizeLevel(f.Level); lvl != "" && lvl != "ALL" {
		where = append(where, "level = ?")
		args = append(args, lvl)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if f.Search != "" {
		where = append(where, "(instr(lower(message), ?) > 0 OR instr(lower(level), ?) > 0)")
		q := strings.ToLower(f.Search)
		args = append(args, q, q)
	}

	query := `SELECT id, ts, kind, level, state, message FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "querying history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Level, &e.State, &e.Message); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		e.Time = time.Unix(0, ts)
		e.Source = "manager"
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Prune keeps the newest keep entries and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY ts DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, common.WrapError(err, "pruning history")
	}
	return res.RowsAffected()
}

// Observer returns a supervisor observer that records every event.
func (s *Store) Observer() func(gateway.Event) {
	return func(ev gateway.Event) {
		kind := "log"
		if ev.Kind == gateway.EventState {
			kind = "state"
		}
		err := s.Append(context.Background(), Entry{
			Time:    ev.Time,
			Kind:    kind,
			Level:   ev.Level.String(),
			State:   ev.State.String(),
			Message: ev.Message,
		})
		if err != nil {
			common.LogDebug("Recording event failed: %v", err)
		}
	}
}
