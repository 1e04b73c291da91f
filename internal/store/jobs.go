// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tvgate/tvgate/internal/dvr"
)

const jobColumns = `id, user_id, channel_id, channel_name, program_title,
	start_time, end_time, status, profile_id, user_agent_id,
	ffmpeg_pid, file_path, error_message, created_at, updated_at`

// InsertJob implements dvr.Store.
func (s *Store) InsertJob(ctx context.Context, j dvr.Job) error {
	now := time.Now().Unix()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Unix(now, 0)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dvr_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.ChannelID, j.ChannelName, j.ProgramTitle,
		j.StartTime.Unix(), j.EndTime.Unix(), string(j.Status), j.ProfileID, j.UserAgentID,
		j.FFmpegPID, j.FilePath, j.ErrorMessage, j.CreatedAt.Unix(), now)
	if err != nil {
		return fmt.Errorf("store: insert job %s: %w", j.ID, err)
	}
	return nil
}

// UpdateJob implements dvr.Store.
func (s *Store) UpdateJob(ctx context.Context, j dvr.Job) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dvr_jobs SET
			channel_name = ?, program_title = ?, start_time = ?, end_time = ?,
			status = ?, profile_id = ?, user_agent_id = ?, ffmpeg_pid = ?,
			file_path = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		j.ChannelName, j.ProgramTitle, j.StartTime.Unix(), j.EndTime.Unix(),
		string(j.Status), j.ProfileID, j.UserAgentID, j.FFmpegPID,
		j.FilePath, j.ErrorMessage, time.Now().Unix(), j.ID)
	if err != nil {
		return fmt.Errorf("store: update job %s: %w", j.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dvr.ErrJobNotFound
	}
	return nil
}

// GetJob implements dvr.Store.
func (s *Store) GetJob(ctx context.Context, id string) (dvr.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dvr_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return dvr.Job{}, dvr.ErrJobNotFound
	}
	if err != nil {
		return dvr.Job{}, fmt.Errorf("store: get job %s: %w", id, err)
	}
	return j, nil
}

// ListJobs implements dvr.Store.
func (s *Store) ListJobs(ctx context.Context, f dvr.JobFilter) ([]dvr.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM dvr_jobs`
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ph[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(ph, ", ")+")")
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_time"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []dvr.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteJob implements dvr.Store.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dvr_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete job %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (dvr.Job, error) {
	var (
		j                            dvr.Job
		status                       string
		start, end, created, updated int64
	)
	err := r.Scan(&j.ID, &j.UserID, &j.ChannelID, &j.ChannelName, &j.ProgramTitle,
		&start, &end, &status, &j.ProfileID, &j.UserAgentID,
		&j.FFmpegPID, &j.FilePath, &j.ErrorMessage, &created, &updated)
	if err != nil {
		return dvr.Job{}, err
	}
	j.StartTime = time.Unix(start, 0).UTC()
	j.EndTime = time.Unix(end, 0).UTC()
	j.CreatedAt = time.Unix(created, 0).UTC()
	j.UpdatedAt = time.Unix(updated, 0).UTC()
	j.Status = dvr.Status(status)
	return j, nil
}
