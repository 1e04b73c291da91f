// SPDX-License-Identifier: MIT

//go:build unix

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_ReclaimsOnlyExpiredIdleSessions(t *testing.T) {
	m, _ := newTestManager(t, longRunning)
	j := &Janitor{Manager: m, Interval: time.Minute, Timeout: 30 * time.Second}

	res, err := m.Attach(context.Background(), AttachRequest{UserID: "alice", StreamURL: "http://src/1", ProfileID: "p1"})
	require.NoError(t, err)
	require.NoError(t, res.Output.Close())

	now := time.Now()

	// Idle but within the grace window: untouched.
	j.SweepOnce(now.Add(10 * time.Second))
	require.Len(t, m.Snapshot(), 1)

	// Past the grace window: killed and removed.
	j.SweepOnce(now.Add(31 * time.Second))
	assert.Empty(t, m.Snapshot())
}

func TestJanitor_NeverTouchesSessionsWithViewers(t *testing.T) {
	m, _ := newTestManager(t, longRunning)
	j := &Janitor{Manager: m, Interval: time.Minute, Timeout: 30 * time.Second}

	res, err := m.Attach(context.Background(), AttachRequest{UserID: "alice", StreamURL: "http://src/1", ProfileID: "p1"})
	require.NoError(t, err)
	defer res.Output.Close()

	// Far in the future, but the viewer is still attached.
	j.SweepOnce(time.Now().Add(24 * time.Hour))
	assert.Len(t, m.Snapshot(), 1)
}

func TestJanitor_ReattachResetsIdleClock(t *testing.T) {
	m, _ := newTestManager(t, longRunning)
	j := &Janitor{Manager: m, Interval: time.Minute, Timeout: 30 * time.Second}
	req := AttachRequest{UserID: "alice", StreamURL: "http://src/1", ProfileID: "p1"}

	res, err := m.Attach(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, res.Output.Close())

	// A reconnect before the sweep keeps the session alive.
	res2, err := m.Attach(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, res2.Output.Close())

	j.SweepOnce(time.Now().Add(10 * time.Second))
	assert.Len(t, m.Snapshot(), 1)
}
