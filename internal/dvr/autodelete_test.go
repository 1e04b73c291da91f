// SPDX-License-Identifier: MIT

//go:build unix

package dvr_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvgate/tvgate/internal/dvr"
)

// insertRecording seeds an artifact row plus its backing file.
func insertRecording(t *testing.T, e *env, userID string, age time.Duration) dvr.Recording {
	t.Helper()
	rec := dvr.Recording{
		ID:            uuid.New().String(),
		JobID:         uuid.New().String(),
		UserID:        userID,
		ChannelName:   "Channel One",
		ProgramTitle:  "Archived Program",
		FilePath:      filepath.Join(e.recDir, uuid.New().String()+".ts"),
		FileSizeBytes: 4096,
		StartTime:     time.Now().Add(-age),
	}
	require.NoError(t, os.WriteFile(rec.FilePath, make([]byte, 4096), 0o666))
	require.NoError(t, e.store.InsertRecording(e.ctx, rec))
	return rec
}

func TestRunAutoDelete_RemovesExpiredRecordings(t *testing.T) {
	e := newEnv(t, idleRecorder)

	old := insertRecording(t, e, "alice", 10*24*time.Hour)
	fresh := insertRecording(t, e, "alice", 2*24*time.Hour)

	e.mgr.RunAutoDelete(e.ctx, retentionDays{"alice": 7})

	recs, err := e.mgr.ListRecordings(e.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fresh.ID, recs[0].ID)

	_, err = os.Stat(old.FilePath)
	assert.True(t, os.IsNotExist(err), "expired file must be removed from disk")
	_, err = os.Stat(fresh.FilePath)
	assert.NoError(t, err)
}

func TestRunAutoDelete_ZeroRetentionKeepsEverything(t *testing.T) {
	e := newEnv(t, idleRecorder)

	insertRecording(t, e, "alice", 365*24*time.Hour)

	e.mgr.RunAutoDelete(e.ctx, retentionDays{"alice": 0})

	recs, err := e.mgr.ListRecordings(e.ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRunAutoDelete_PerUserRetention(t *testing.T) {
	e := newEnv(t, idleRecorder)

	insertRecording(t, e, "alice", 10*24*time.Hour)
	bobOld := insertRecording(t, e, "bob", 10*24*time.Hour)

	e.mgr.RunAutoDelete(e.ctx, retentionDays{"alice": 7, "bob": 30})

	aliceRecs, err := e.mgr.ListRecordings(e.ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, aliceRecs)

	bobRecs, err := e.mgr.ListRecordings(e.ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobRecs, 1)
	assert.Equal(t, bobOld.ID, bobRecs[0].ID)
}

func TestRunAutoDelete_MissingFileStillDropsRow(t *testing.T) {
	e := newEnv(t, idleRecorder)

	rec := insertRecording(t, e, "alice", 10*24*time.Hour)
	require.NoError(t, os.Remove(rec.FilePath))

	e.mgr.RunAutoDelete(e.ctx, retentionDays{"alice": 7})

	recs, err := e.mgr.ListRecordings(e.ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
