// SPDX-License-Identifier: MIT

// Package store persists jobs, recordings and history events in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines standard SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended pool configuration.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// Open initializes a SQLite connection pool with mandatory PRAGMAs and
// applies the schema. It enforces WAL mode and busy_timeout.
func Open(dbPath string, cfg Config) (*Store, error) {
	// The _pragma DSN parameters apply to every connection in the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Store wraps the sqlite handle with the job/recording/history repositories.
type Store struct {
	db *sql.DB
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS dvr_jobs (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    channel_id     TEXT NOT NULL,
    channel_name   TEXT NOT NULL DEFAULT '',
    program_title  TEXT NOT NULL DEFAULT '',
    start_time     INTEGER NOT NULL,
    end_time       INTEGER NOT NULL,
    status         TEXT NOT NULL,
    profile_id     TEXT NOT NULL DEFAULT '',
    user_agent_id  TEXT NOT NULL DEFAULT '',
    ffmpeg_pid     INTEGER NOT NULL DEFAULT 0,
    file_path      TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dvr_jobs_user_status ON dvr_jobs(user_id, status);

CREATE TABLE IF NOT EXISTS dvr_recordings (
    id               TEXT PRIMARY KEY,
    job_id           TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    channel_name     TEXT NOT NULL DEFAULT '',
    program_title    TEXT NOT NULL DEFAULT '',
    file_path        TEXT NOT NULL,
    file_size_bytes  INTEGER NOT NULL DEFAULT 0,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    start_time       INTEGER NOT NULL,
    created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dvr_recordings_user ON dvr_recordings(user_id, start_time);

CREATE TABLE IF NOT EXISTS history_events (
    id               TEXT PRIMARY KEY,
    kind             TEXT NOT NULL,
    user_id          TEXT NOT NULL DEFAULT '',
    name             TEXT NOT NULL DEFAULT '',
    stream_url       TEXT NOT NULL DEFAULT '',
    profile_name     TEXT NOT NULL DEFAULT '',
    client_ip        TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT '',
    started_at       INTEGER NOT NULL,
    stopped_at       INTEGER NOT NULL DEFAULT 0,
    duration_seconds INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_history_events_started ON history_events(started_at);
`
