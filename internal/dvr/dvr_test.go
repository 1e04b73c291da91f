// SPDX-License-Identifier: MIT

//go:build unix

package dvr_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tvgate/tvgate/internal/channels"
	"github.com/tvgate/tvgate/internal/dvr"
	"github.com/tvgate/tvgate/internal/history"
	"github.com/tvgate/tvgate/internal/observe"
	"github.com/tvgate/tvgate/internal/proc"
	"github.com/tvgate/tvgate/internal/profile"
	"github.com/tvgate/tvgate/internal/store"
)

// recorderSource serves one recording command template for every profile id.
type recorderSource struct {
	command string
}

func (s *recorderSource) ActiveProfile(kind profile.Kind, profileID string) (profile.Profile, error) {
	return profile.Profile{ID: profileID, Name: "test recorder", Command: s.command}, nil
}

func (s *recorderSource) UserAgent(id string) (profile.UserAgent, error) {
	return profile.UserAgent{ID: id, Name: "test agent", Value: "TestAgent/1.0"}, nil
}

// retentionDays is a fixed per-user retention table.
type retentionDays map[string]int

func (r retentionDays) AutoDeleteDays(userID string) int { return r[userID] }

type env struct {
	ctx    context.Context
	store  *store.Store
	mgr    *dvr.Manager
	recDir string
}

// newEnv wires a Manager against a real sqlite store and a shell-based
// recorder command.
func newEnv(t *testing.T, command string) *env {
	t.Helper()

	tmp := t.TempDir()
	st, err := store.Open(filepath.Join(tmp, "test.db"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dir := channels.NewStaticDirectory()
	dir.Replace([]channels.Channel{
		{ID: "ch1", Name: "Channel One", URL: "http://upstream/ch1"},
		{ID: "ch2", Name: "Channel Two", URL: "http://upstream/ch2"},
	})

	recDir := filepath.Join(tmp, "recordings")
	mgr := dvr.NewManager(
		st,
		dir,
		profile.NewResolver(&recorderSource{command: command}),
		proc.NewRunner(time.Second),
		history.NewRecorder(st),
		observe.NewHub(),
		dvr.Options{
			RecordingsDir:           recDir,
			MaxConcurrentRecordings: 1,
			PreBuffer:               time.Minute,
			PostBuffer:              2 * time.Minute,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		mgr.Shutdown()
		cancel()
	})

	require.NoError(t, os.MkdirAll(recDir, 0o755))
	return &env{ctx: ctx, store: st, mgr: mgr, recDir: recDir}
}

// waitStatus blocks until the job reaches status or the deadline passes.
func (e *env) waitStatus(t *testing.T, jobID string, status dvr.Status) dvr.Job {
	t.Helper()
	var job dvr.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = e.store.GetJob(e.ctx, jobID)
		return err == nil && job.Status == status
	}, 10*time.Second, 25*time.Millisecond, "job %s never reached %s", jobID, status)
	return job
}
