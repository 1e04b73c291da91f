// SPDX-License-Identifier: MIT

//go:build unix

package dvr_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvgate/tvgate/internal/dvr"
)

// scheduleNow arms a job whose window opened a moment ago so the start timer
// fires immediately.
func scheduleNow(t *testing.T, e *env, userID string) dvr.Job {
	t.Helper()
	start := time.Now()
	job, err := e.mgr.Schedule(e.ctx, dvr.ScheduleRequest{
		UserID:            userID,
		ChannelID:         "ch1",
		ProgramTitle:      "Live Capture",
		Start:             start,
		Stop:              start.Add(time.Hour),
		PreBufferMinutes:  0,
		PostBufferMinutes: 0,
	})
	require.NoError(t, err)
	return job
}

func TestRecording_CleanExitProducesArtifact(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "head -c 4096 /dev/zero > {filePath}"`)

	job := scheduleNow(t, e, "alice")
	done := e.waitStatus(t, job.ID, dvr.StatusCompleted)

	require.NotEmpty(t, done.FilePath)
	info, err := os.Stat(done.FilePath)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, info.Size())
	assert.Equal(t, os.FileMode(0666), info.Mode().Perm())

	recs, err := e.mgr.ListRecordings(e.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, job.ID, recs[0].JobID)
	assert.EqualValues(t, 4096, recs[0].FileSizeBytes)
	// Duration reflects the scheduled window, not process wall clock.
	assert.Equal(t, int(done.EndTime.Sub(done.StartTime).Seconds()), recs[0].DurationSeconds)
}

func TestRecording_TinyOutputIsFailureAndStubRemoved(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "head -c 512 /dev/zero > {filePath}"`)

	job := scheduleNow(t, e, "alice")
	failed := e.waitStatus(t, job.ID, dvr.StatusError)

	assert.Contains(t, failed.ErrorMessage, "too small")
	_, err := os.Stat(failed.FilePath)
	assert.True(t, os.IsNotExist(err), "stub file must be deleted")

	recs, err := e.mgr.ListRecordings(e.ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecording_OutputAtSizeFloorIsFailure(t *testing.T) {
	// 1024 bytes is the inclusive stub limit: a file must exceed it.
	e := newEnv(t, `/bin/sh -c "head -c 1024 /dev/zero > {filePath}"`)

	job := scheduleNow(t, e, "alice")
	failed := e.waitStatus(t, job.ID, dvr.StatusError)

	assert.Contains(t, failed.ErrorMessage, "too small")
	_, err := os.Stat(failed.FilePath)
	assert.True(t, os.IsNotExist(err), "stub file must be deleted")
}

func TestRecording_OneByteOverSizeFloorSucceeds(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "head -c 1025 /dev/zero > {filePath}"`)

	job := scheduleNow(t, e, "alice")
	done := e.waitStatus(t, job.ID, dvr.StatusCompleted)

	info, err := os.Stat(done.FilePath)
	require.NoError(t, err)
	assert.EqualValues(t, 1025, info.Size())
}

func TestRecording_TimersOutliveSchedulingContext(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "head -c 4096 /dev/zero > {filePath}"`)

	reqCtx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	job, err := e.mgr.Schedule(reqCtx, dvr.ScheduleRequest{
		UserID:            "alice",
		ChannelID:         "ch1",
		ProgramTitle:      "Live Capture",
		Start:             start,
		Stop:              start.Add(time.Hour),
		PreBufferMinutes:  0,
		PostBufferMinutes: 0,
	})
	require.NoError(t, err)
	// The scheduling request's context dies as soon as the handler returns;
	// the armed job must record and complete anyway.
	cancel()

	e.waitStatus(t, job.ID, dvr.StatusCompleted)
}

func TestRecording_InterruptExitCodeIsGraceful(t *testing.T) {
	// Exit code 255 is the recorder's documented cooperative-interrupt code.
	e := newEnv(t, `/bin/sh -c "head -c 4096 /dev/zero > {filePath}; exit 255"`)

	job := scheduleNow(t, e, "alice")
	e.waitStatus(t, job.ID, dvr.StatusCompleted)
}

func TestRecording_StderrMarkerOverridesExitCode(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "head -c 4096 /dev/zero > {filePath}; echo Exiting normally, received signal 2. >&2; exit 1"`)

	job := scheduleNow(t, e, "alice")
	e.waitStatus(t, job.ID, dvr.StatusCompleted)
}

func TestRecording_FailureKeepsStderrTail(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "echo input stream corrupted >&2; exit 1"`)

	job := scheduleNow(t, e, "alice")
	failed := e.waitStatus(t, job.ID, dvr.StatusError)

	assert.Contains(t, failed.ErrorMessage, "exit code 1")
	assert.Contains(t, failed.ErrorMessage, "input stream corrupted")
}

func TestStopRecording_InterruptsRunningProcess(t *testing.T) {
	e := newEnv(t, `/bin/sh -c "head -c 4096 /dev/zero > {filePath}; trap 'exit 0' INT; while :; do sleep 1; done"`)

	job := scheduleNow(t, e, "alice")
	running := e.waitStatus(t, job.ID, dvr.StatusRecording)
	assert.NotZero(t, running.FFmpegPID)

	require.NoError(t, e.mgr.StopRecording(job.ID))
	e.waitStatus(t, job.ID, dvr.StatusCompleted)
}

func TestRecording_CancelledBeforeStartNeverSpawns(t *testing.T) {
	e := newEnv(t, idleRecorder)
	start, stop := futureWindow(time.Hour, time.Hour)

	job, err := e.mgr.Schedule(e.ctx, dvr.ScheduleRequest{
		UserID: "alice", ChannelID: "ch1",
		Start: start, Stop: stop,
		PreBufferMinutes: 0, PostBufferMinutes: 0,
	})
	require.NoError(t, err)
	require.NoError(t, e.mgr.Cancel(e.ctx, job.ID))

	// The timers are disarmed; nothing flips the job back out of cancelled.
	time.Sleep(100 * time.Millisecond)
	stored, err := e.store.GetJob(e.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, dvr.StatusCancelled, stored.Status)
}
