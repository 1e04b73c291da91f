// SPDX-License-Identifier: MIT

package dvr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tvgate/tvgate/internal/history"
	"github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/proc"
	"github.com/tvgate/tvgate/internal/profile"
)

const (
	// minRecordingBytes is the success threshold: a file at or below this
	// size is a stub from an immediate failure, not a recording.
	minRecordingBytes = 1024

	// gracefulExitMarker appears on stderr when the recorder shuts down
	// cooperatively after an interrupt ("Exiting normally, received
	// signal 2."). Its presence means graceful regardless of exit code.
	gracefulExitMarker = "Exiting normally"

	// gracefulInterruptCode is the documented exit code of a cooperative
	// interrupt for this subprocess family; never classified as failure.
	gracefulInterruptCode = 255
)

// startRecording is the start-timer callback. Resolution failures are
// terminal for the job and never retried; there is no caller to return an
// error to, so everything lands in the job's errorMessage.
func (m *Manager) startRecording(ctx context.Context, jobID string) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Error().Err(err).Str(log.FieldJobID, jobID).Msg("start timer fired for unknown job")
		return
	}
	if job.Status != StatusScheduled {
		// Cancelled or already handled between arming and firing.
		return
	}

	ch, err := m.dir.ResolveChannel(job.ChannelID)
	if err != nil {
		m.failJob(ctx, job, fmt.Sprintf("channel %s not found", job.ChannelID))
		return
	}
	p, ua, err := m.resolver.Resolve(profile.KindRecording, job.ProfileID, job.UserAgentID)
	if err != nil {
		m.failJob(ctx, job, fmt.Sprintf("resolve profile %s / user agent %s: %v", job.ProfileID, job.UserAgentID, err))
		return
	}

	filePath := filepath.Join(m.recordingsDir,
		fmt.Sprintf("%s-%s%s", job.ID, slugify(job.ProgramTitle), profile.OutputExt(p)))

	args := profile.RecordingArgs(p, ch.URL, ua.Value, filePath)
	// The recorder's lifetime is bounded by the stop timer and Interrupt,
	// never by context cancellation: Shutdown's cancel must not SIGKILL a
	// recorder mid-way through its graceful exit.
	process, err := m.runner.Start(context.Background(), args)
	if err != nil {
		m.failJob(ctx, job, fmt.Sprintf("spawn recorder: %v", err))
		return
	}
	// The recorder writes to filePath; its stdout is unused but must be
	// drained so the pipe never stalls the process.
	go func() { _, _ = io.Copy(io.Discard, process.Stdout()) }()

	now := m.clock.Now()
	job.Status = StatusRecording
	job.FFmpegPID = process.PID()
	job.FilePath = filePath
	if err := m.store.UpdateJob(ctx, job); err != nil {
		// Persistence failures never kill a healthy recording.
		m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to persist recording state")
	}

	historyID := m.history.Start(ctx, history.Event{
		Kind:        history.KindRecording,
		UserID:      job.UserID,
		Name:        job.ProgramTitle,
		StreamURL:   ch.URL,
		ProfileName: p.Name,
		Status:      "recording",
	})

	m.mu.Lock()
	m.active[job.ID] = &activeRecording{process: process, historyID: historyID, startedAt: now}
	m.mu.Unlock()

	recordingsStarted.Inc()
	m.logger.Info().
		Str(log.FieldJobID, job.ID).
		Str(log.FieldChannel, job.ChannelName).
		Int(log.FieldPID, process.PID()).
		Str(log.FieldPath, filePath).
		Msg("recording started")
	m.notifyObservers()

	go func() {
		ev := <-process.Exited()
		m.finishRecording(context.Background(), job.ID, ev)
	}()
}

// finishRecording classifies the recorder's exit and moves the job to its
// terminal state.
func (m *Manager) finishRecording(ctx context.Context, jobID string, ev proc.ExitEvent) {
	m.mu.Lock()
	ar := m.active[jobID]
	delete(m.active, jobID)
	m.mu.Unlock()
	m.disarm(jobID)

	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Error().Err(err).Str(log.FieldJobID, jobID).Msg("recorder exited for unknown job")
		return
	}

	graceful := ev.Code == 0 ||
		ev.Code == gracefulInterruptCode ||
		strings.Contains(ev.StderrTail, gracefulExitMarker)

	// Recordings must stay manageable by the hosting user after the
	// process exits.
	if job.FilePath != "" {
		if err := os.Chmod(job.FilePath, 0666); err != nil && !os.IsNotExist(err) { // #nosec G302
			m.logger.Warn().Err(err).Str(log.FieldPath, job.FilePath).Msg("failed to normalize recording permissions")
		}
	}

	info, statErr := os.Stat(job.FilePath)

	if graceful && statErr == nil && info.Size() > minRecordingBytes {
		job.Status = StatusCompleted
		job.ErrorMessage = ""
		if err := m.store.UpdateJob(ctx, job); err != nil {
			m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to persist completed job")
		}
		rec := Recording{
			ID:            uuid.New().String(),
			JobID:         job.ID,
			UserID:        job.UserID,
			ChannelName:   job.ChannelName,
			ProgramTitle:  job.ProgramTitle,
			FilePath:      job.FilePath,
			FileSizeBytes: info.Size(),
			// Duration comes from the job window, not wall clock.
			DurationSeconds: int(job.EndTime.Sub(job.StartTime).Seconds()),
			StartTime:       job.StartTime,
		}
		if err := m.store.InsertRecording(ctx, rec); err != nil {
			m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to persist recording artifact")
		}
		recordingsFinished.WithLabelValues("completed").Inc()
		m.logger.Info().
			Str(log.FieldJobID, job.ID).
			Int64("size_bytes", info.Size()).
			Msg("recording completed")
		if ar != nil {
			m.history.Stop(ctx, ar.historyID, ar.startedAt, "completed")
		}
		m.notifyObservers()
		return
	}

	msg := fmt.Sprintf("recording failed: exit code %d", ev.Code)
	if statErr != nil {
		msg += fmt.Sprintf("; output file: %v", statErr)
	} else if info.Size() <= minRecordingBytes {
		msg += fmt.Sprintf("; output file too small (%d bytes)", info.Size())
		// Do not accumulate stub artifacts from immediate failures.
		if err := os.Remove(job.FilePath); err != nil {
			m.logger.Warn().Err(err).Str(log.FieldPath, job.FilePath).Msg("failed to delete stub recording")
		}
	}
	if tail := strings.TrimSpace(ev.StderrTail); tail != "" {
		msg += "; stderr: " + tail
	}

	job.Status = StatusError
	job.ErrorMessage = msg
	if err := m.store.UpdateJob(ctx, job); err != nil {
		m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to persist failed job")
	}
	recordingsFinished.WithLabelValues("error").Inc()
	m.logger.Error().
		Str(log.FieldJobID, job.ID).
		Int(log.FieldExitCode, ev.Code).
		Msg("recording failed")
	if ar != nil {
		m.history.Stop(ctx, ar.historyID, ar.startedAt, "error")
	}
	m.notifyObservers()
}

// failJob marks a job failed before any process was spawned.
func (m *Manager) failJob(ctx context.Context, job Job, msg string) {
	job.Status = StatusError
	job.ErrorMessage = msg
	if err := m.store.UpdateJob(ctx, job); err != nil {
		m.logger.Warn().Err(err).Str(log.FieldJobID, job.ID).Msg("failed to persist job error")
	}
	recordingsFinished.WithLabelValues("error").Inc()
	m.logger.Error().
		Str(log.FieldJobID, job.ID).
		Str("reason", msg).
		Msg("recording failed before start")
	m.notifyObservers()
}

// ttl helper used by auto-delete; kept here so retention math lives next to
// the classification rules.
func olderThan(r Recording, cutoff time.Time) bool {
	return r.StartTime.Before(cutoff)
}
