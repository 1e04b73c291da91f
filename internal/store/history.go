// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tvgate/tvgate/internal/history"
)

// AppendEvent implements history.Sink.
func (s *Store) AppendEvent(ctx context.Context, ev history.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_events (id, kind, user_id, name, stream_url,
			profile_name, client_ip, status, started_at, stopped_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
		ev.ID, string(ev.Kind), ev.UserID, ev.Name, ev.StreamURL,
		ev.ProfileName, ev.ClientIP, ev.Status, ev.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: append history event %s: %w", ev.ID, err)
	}
	return nil
}

// FinalizeEvent implements history.Sink.
func (s *Store) FinalizeEvent(ctx context.Context, id string, stoppedAt time.Time, durationSeconds int, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE history_events
		SET stopped_at = ?, duration_seconds = ?, status = ?
		WHERE id = ?`,
		stoppedAt.Unix(), durationSeconds, status, id)
	if err != nil {
		return fmt.Errorf("store: finalize history event %s: %w", id, err)
	}
	return nil
}

// ListHistory returns the most recent events, newest first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]history.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, user_id, name, stream_url, profile_name, client_ip,
			status, started_at, stopped_at, duration_seconds
		FROM history_events ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list history: %w", err)
	}
	defer rows.Close()

	var events []history.Event
	for rows.Next() {
		var (
			ev               history.Event
			kind             string
			started, stopped int64
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.UserID, &ev.Name, &ev.StreamURL,
			&ev.ProfileName, &ev.ClientIP, &ev.Status, &started, &stopped,
			&ev.DurationSeconds); err != nil {
			return nil, fmt.Errorf("store: scan history event: %w", err)
		}
		ev.Kind = history.Kind(kind)
		ev.StartedAt = time.Unix(started, 0).UTC()
		if stopped > 0 {
			ev.StoppedAt = time.Unix(stopped, 0).UTC()
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
