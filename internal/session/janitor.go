// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"time"

	"github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/proc"
)

// Janitor reclaims sessions abandoned without a clean Stop (client crash,
// dropped connection). It is the only automatic teardown path for idle
// streams.
type Janitor struct {
	Manager  *Manager
	Interval time.Duration // sweep period
	Timeout  time.Duration // kill after refCount has been zero this long
}

// Run sweeps on a ticker until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	startLogger := log.WithComponent("session.janitor")
	startLogger.Info().
		Dur("interval", j.Interval).
		Dur("timeout", j.Timeout).
		Msg("inactivity janitor started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.SweepOnce(time.Now())
		}
	}
}

// SweepOnce performs exactly one sweep pass. Deterministic and suitable for
// unit testing.
func (j *Janitor) SweepOnce(now time.Time) {
	m := j.Manager
	logger := log.WithComponent("session.janitor")

	type victim struct {
		session *Session
		process *proc.Process
	}

	m.mu.Lock()
	var stale []victim
	for _, s := range m.sessions {
		if s.refCount <= 0 && now.Sub(s.lastAccess) > j.Timeout {
			stale = append(stale, victim{session: s, process: s.process})
		}
	}
	m.mu.Unlock()

	for _, v := range stale {
		s := v.session
		// The process may already be dead; the bookkeeping entry goes
		// regardless.
		if v.process != nil {
			if err := v.process.Kill(); err != nil {
				logger.Warn().Err(err).
					Str(log.FieldUserID, s.key.UserID).
					Str(log.FieldStreamURL, s.key.StreamURL).
					Msg("janitor failed to kill process")
			}
		}
		if m.finalize(s, "stopped") {
			janitorKills.Inc()
			logger.Info().
				Str(log.FieldUserID, s.key.UserID).
				Str(log.FieldStreamURL, s.key.StreamURL).
				Dur("idle", now.Sub(s.lastAccess)).
				Msg("reclaimed inactive session")
		}
	}
}
