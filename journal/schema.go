// Package journal provides the SQLite session history.
package journal

// schema holds the table definitions. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT    PRIMARY KEY,
    protocol      TEXT    NOT NULL DEFAULT '',
    started_at    INTEGER NOT NULL,
    configured_at INTEGER,
    device        TEXT    NOT NULL DEFAULT '',
    address       TEXT    NOT NULL DEFAULT '',
    finished_at   INTEGER,
    outcome       TEXT    NOT NULL DEFAULT '',
    message       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_started
    ON sessions (started_at);
`
