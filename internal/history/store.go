// Package history keeps a local log of calls in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Role is which side started the call
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// ErrNotFound is returned by End for an unknown id
var ErrNotFound = errors.New("call not found")

// Record is one row of the call log
type Record struct {
	ID          int64      `json:"id"`
	Room        string     `json:"room"`
	Role        Role       `json:"role"`
	Peer        string     `json:"peer,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	AudioDevice string     `json:"audio_device,omitempty"`
	MuteToggles int        `json:"mute_toggles"`
	EndReason   string     `json:"end_reason,omitempty"`
}

// Duration returns how long the call lasted, or zero while it is ongoing
func (r Record) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Ending holds what is known when a call ends
type Ending struct {
	EndedAt     time.Time
	AudioDevice string
	MuteToggles int
	Reason      string
}

// Store manages call history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryBackoff  = 20 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room TEXT NOT NULL,
	role TEXT NOT NULL,
	peer TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	ended_at INTEGER,
	audio_device TEXT NOT NULL DEFAULT '',
	mute_toggles INTEGER NOT NULL DEFAULT 0,
	end_reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at);
`

// DefaultPath returns the database location in the user config dir
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(dir, "EzCall", "history.db"), nil
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res sql.Result
		err error
	)
	delay := busyRetryBackoff
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, err = s.db.ExecContext(ctx, query, args...)
		if !isSQLiteBusy(err) {
			return res, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return res, err
}

// Begin records the start of a call and returns its id
func (s *Store) Begin(ctx context.Context, room string, role Role, startedAt time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`INSERT INTO calls (room, role, started_at) VALUES (?, ?, ?)`,
		room, string(role), startedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert call: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("call id: %w", err)
	}
	return id, nil
}

// SetPeer stores the remote peer id once it is known
func (s *Store) SetPeer(ctx context.Context, id int64, peer string) error {
	return s.update(ctx, `UPDATE calls SET peer = ? WHERE id = ?`, peer, id)
}

// End records how a call finished
func (s *Store) End(ctx context.Context, id int64, e Ending) error {
	return s.update(ctx,
		`UPDATE calls SET ended_at = ?, audio_device = ?, mute_toggles = ?, end_reason = ? WHERE id = ?`,
		e.EndedAt.UnixMilli(), e.AudioDevice, e.MuteToggles, e.Reason, id)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recent returns up to limit calls, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, role, peer, started_at, ended_at, audio_device, mute_toggles, end_reason
		 FROM calls ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			role    string
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Room, &role, &r.Peer, &started, &ended, &r.AudioDevice, &r.MuteToggles, &r.EndReason); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		r.Role = Role(role)
		r.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			t := time.UnixMilli(ended.Int64)
			r.EndedAt = &t
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return records, nil
}
