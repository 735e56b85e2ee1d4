// Package journal keeps a SQLite history of engine sessions.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrUnknownSession is returned when updating a session that was never started.
var ErrUnknownSession = errors.New("unknown session")

// Session is one recorded session.
type Session struct {
	ID           string
	Protocol     string
	StartedAt    time.Time
	ConfiguredAt time.Time
	Device       string
	Address      string
	FinishedAt   time.Time
	Outcome      string
	Message      string
}

// Running reports whether the session has no recorded end.
func (s Session) Running() bool {
	return s.FinishedAt.IsZero()
}

// Duration returns how long the session lasted, or zero while running.
func (s Session) Duration() time.Duration {
	if s.Running() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Journal records session history.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and runs the schema.
// Use ":memory:" for an in-memory journal.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection: a single writer and a shared in-memory database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SessionStarted records the start of session.
func (j *Journal) SessionStarted(session, protocol string, at time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO sessions (id, protocol, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET protocol = excluded.protocol, started_at = excluded.started_at`,
		session, protocol, at.UnixMilli(),
	)
	return err
}

// SessionConfigured records the configuration delivered for session.
func (j *Journal) SessionConfigured(session, device, address string, at time.Time) error {
	res, err := j.db.Exec(
		`UPDATE sessions SET configured_at = ?, device = ?, address = ? WHERE id = ?`,
		at.UnixMilli(), device, address, session,
	)
	if err != nil {
		return err
	}
	return requireRow(res, session)
}

// SessionFinished records how session ended. A session that was never
// recorded as started gets a row starting and finishing at the same time.
func (j *Journal) SessionFinished(session, outcome, message string, at time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO sessions (id, started_at, finished_at, outcome, message) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET finished_at = excluded.finished_at,
		     outcome = excluded.outcome, message = excluded.message`,
		session, at.UnixMilli(), at.UnixMilli(), outcome, message,
	)
	return err
}

// Recent returns up to limit sessions, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT id, protocol, started_at, configured_at, device, address, finished_at, outcome, message
		 FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s                    Session
			started              int64
			configured, finished sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Protocol, &started, &configured, &s.Device, &s.Address, &finished, &s.Outcome, &s.Message); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started)
		if configured.Valid {
			s.ConfiguredAt = time.UnixMilli(configured.Int64)
		}
		if finished.Valid {
			s.FinishedAt = time.UnixMilli(finished.Int64)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Prune deletes finished sessions that ended before cutoff.
func (j *Journal) Prune(cutoff time.Time) (int64, error) {
	res, err := j.db.Exec(`DELETE FROM sessions WHERE finished_at IS NOT NULL AND finished_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Retain prunes sessions that finished more than retention before now.
// A zero retention keeps everything.
func (j *Journal) Retain(retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return j.Prune(now.Add(-retention))
}

func requireRow(res sql.Result, session string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}
	return nil
}
