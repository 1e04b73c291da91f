// SPDX-License-Identifier: MIT

//go:build unix

package proc

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRunner_ProcessLifecycle_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewRunner(time.Second)

	p, err := r.Start(context.Background(), []string{"/bin/sh", "-c", "echo data"})
	require.NoError(t, err)

	f := NewFanout(p.Stdout())
	c := f.Subscribe()

	out, err := io.ReadAll(c)
	require.NoError(t, err)
	require.Equal(t, "data\n", string(out))
	require.NoError(t, c.Close())

	select {
	case <-p.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}
