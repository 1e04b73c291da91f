// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds every runtime knob of the gateway core.
type Config struct {
	DataDir       string // state directory (sqlite db lives here)
	RecordingsDir string // where finished recording files are written

	// Live stream sharing
	InactivityTimeout time.Duration // kill idle sessions after this
	JanitorInterval   time.Duration // sweep period for idle sessions

	// DVR
	MaxConcurrentRecordings int    // overlap limit per user before ConflictError
	PreBufferMinutes        int    // default minutes recorded before program start
	PostBufferMinutes       int    // default minutes recorded after program end
	AutoDeleteCron          string // cron spec for the retention sweep

	// Process supervision
	KillTimeout time.Duration // grace between SIGTERM and SIGKILL

	LogLevel string
}

// FromEnv builds a Config from TVGATE_* environment variables. Every unset
// or invalid variable falls back to its logged default.
func FromEnv() Config {
	return Config{
		DataDir:       ParseString("TVGATE_DATA", "/var/lib/tvgate"),
		RecordingsDir: ParseString("TVGATE_RECORDINGS", "/var/lib/tvgate/recordings"),

		InactivityTimeout: ParseDuration("TVGATE_STREAM_INACTIVITY_TIMEOUT", 30*time.Second),
		JanitorInterval:   ParseDuration("TVGATE_STREAM_JANITOR_INTERVAL", 60*time.Second),

		MaxConcurrentRecordings: ParseInt("TVGATE_DVR_MAX_CONCURRENT", 1),
		PreBufferMinutes:        ParseInt("TVGATE_DVR_PRE_BUFFER_MIN", 1),
		PostBufferMinutes:       ParseInt("TVGATE_DVR_POST_BUFFER_MIN", 2),
		AutoDeleteCron:          ParseString("TVGATE_DVR_AUTODELETE_CRON", "0 4 * * *"),

		KillTimeout: ParseDuration("TVGATE_KILL_TIMEOUT", 5*time.Second),

		LogLevel: ParseString("TVGATE_LOG_LEVEL", "info"),
	}
}

// Validate checks directory settings and creates missing directories.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data dir must not be empty")
	}
	if c.MaxConcurrentRecordings < 1 {
		return fmt.Errorf("config: max concurrent recordings must be >= 1, got %d", c.MaxConcurrentRecordings)
	}
	for _, dir := range []string{c.DataDir, c.RecordingsDir} {
		if dir == "" {
			continue
		}
		// #nosec G301 -- 0755
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// DBPath returns the sqlite database location under the data dir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "tvgate.db")
}
