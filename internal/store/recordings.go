// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tvgate/tvgate/internal/dvr"
)

// InsertRecording implements dvr.Store.
func (s *Store) InsertRecording(ctx context.Context, r dvr.Recording) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dvr_recordings (id, job_id, user_id, channel_name, program_title,
			file_path, file_size_bytes, duration_seconds, start_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.JobID, r.UserID, r.ChannelName, r.ProgramTitle,
		r.FilePath, r.FileSizeBytes, r.DurationSeconds, r.StartTime.Unix(), r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: insert recording %s: %w", r.ID, err)
	}
	return nil
}

// ListRecordings implements dvr.Store. An empty userID lists all users.
func (s *Store) ListRecordings(ctx context.Context, userID string) ([]dvr.Recording, error) {
	q := `SELECT id, job_id, user_id, channel_name, program_title,
		file_path, file_size_bytes, duration_seconds, start_time, created_at
		FROM dvr_recordings`
	var args []any
	if userID != "" {
		q += " WHERE user_id = ?"
		args = append(args, userID)
	}
	q += " ORDER BY start_time DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list recordings: %w", err)
	}
	defer rows.Close()

	var recs []dvr.Recording
	for rows.Next() {
		var (
			r              dvr.Recording
			start, created int64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.UserID, &r.ChannelName, &r.ProgramTitle,
			&r.FilePath, &r.FileSizeBytes, &r.DurationSeconds, &start, &created); err != nil {
			return nil, fmt.Errorf("store: scan recording: %w", err)
		}
		r.StartTime = time.Unix(start, 0).UTC()
		r.CreatedAt = time.Unix(created, 0).UTC()
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// ListRecordingUserIDs implements dvr.Store.
func (s *Store) ListRecordingUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM dvr_recordings`)
	if err != nil {
		return nil, fmt.Errorf("store: list recording users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("store: scan user id: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteRecording implements dvr.Store.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dvr_recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete recording %s: %w", id, err)
	}
	return nil
}
