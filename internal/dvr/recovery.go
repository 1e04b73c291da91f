// SPDX-License-Identifier: MIT

package dvr

import (
	"context"
	"fmt"
	"syscall"

	"github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/procgroup"
)

// Recover reconciles persisted jobs with reality after a restart. It must
// run once before the daemon serves requests.
//
// A job persisted as recording is unconditionally stale: the process cannot
// have survived the restart, and recovery never silently resumes; the user
// is asked to reschedule. Scheduled jobs are re-armed from their persisted
// times through the same path as fresh schedules.
func (m *Manager) Recover(ctx context.Context) error {
	now := m.clock.Now()

	stale, err := m.store.ListJobs(ctx, JobFilter{Statuses: []Status{StatusRecording}})
	if err != nil {
		return fmt.Errorf("dvr: list stale recordings: %w", err)
	}
	for _, job := range stale {
		// On a daemon crash the recorder may have been orphaned and still be
		// writing; reap its group before declaring the job dead.
		if job.FFmpegPID > 0 {
			if err := procgroup.KillPid(job.FFmpegPID, syscall.SIGKILL); err != nil {
				m.logger.Warn().Err(err).
					Str(log.FieldJobID, job.ID).
					Int(log.FieldPID, job.FFmpegPID).
					Msg("failed to reap orphaned recorder")
			}
		}
		job.Status = StatusError
		job.ErrorMessage = "Server restarted during recording"
		if err := m.store.UpdateJob(ctx, job); err != nil {
			m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to mark stale recording")
			continue
		}
		m.logger.Warn().
			Str(log.FieldJobID, job.ID).
			Str(log.FieldChannel, job.ChannelName).
			Msg("marked interrupted recording as failed")
	}

	scheduled, err := m.store.ListJobs(ctx, JobFilter{Statuses: []Status{StatusScheduled}})
	if err != nil {
		return fmt.Errorf("dvr: list scheduled jobs: %w", err)
	}
	rearmed := 0
	for _, job := range scheduled {
		if !job.EndTime.After(now) {
			job.Status = StatusError
			job.ErrorMessage = "scheduled for a time in the past"
			if err := m.store.UpdateJob(ctx, job); err != nil {
				m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to expire past job")
			}
			continue
		}
		// A past start with a future end starts recording immediately via
		// the zero-delay start timer.
		m.armJob(job)
		rearmed++
	}

	m.logger.Info().
		Int("stale", len(stale)).
		Int("rearmed", rearmed).
		Msg("dvr startup recovery finished")
	return nil
}
