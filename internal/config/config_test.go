// SPDX-License-Identifier: MIT

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	t.Setenv("TVGATE_TEST_STR", "custom")
	assert.Equal(t, "custom", ParseString("TVGATE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", ParseString("TVGATE_TEST_STR_UNSET", "fallback"))

	t.Setenv("TVGATE_TEST_STR_EMPTY", "")
	assert.Equal(t, "fallback", ParseString("TVGATE_TEST_STR_EMPTY", "fallback"))
}

func TestParseInt(t *testing.T) {
	t.Setenv("TVGATE_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("TVGATE_TEST_INT", 7))
	assert.Equal(t, 7, ParseInt("TVGATE_TEST_INT_UNSET", 7))

	t.Setenv("TVGATE_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, ParseInt("TVGATE_TEST_INT_BAD", 7))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TVGATE_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("TVGATE_TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("TVGATE_TEST_DUR_UNSET", time.Minute))

	t.Setenv("TVGATE_TEST_DUR_BAD", "ninety seconds")
	assert.Equal(t, time.Minute, ParseDuration("TVGATE_TEST_DUR_BAD", time.Minute))
}

func TestParseBool(t *testing.T) {
	for val, want := range map[string]bool{
		"true": true, "1": true, "YES": true,
		"false": false, "0": false, "No": false,
	} {
		t.Setenv("TVGATE_TEST_BOOL", val)
		assert.Equal(t, want, ParseBool("TVGATE_TEST_BOOL", !want), "value %q", val)
	}

	t.Setenv("TVGATE_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("TVGATE_TEST_BOOL", true))
	assert.False(t, ParseBool("TVGATE_TEST_BOOL", false))
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "/var/lib/tvgate", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.InactivityTimeout)
	assert.Equal(t, 60*time.Second, cfg.JanitorInterval)
	assert.Equal(t, 1, cfg.MaxConcurrentRecordings)
	assert.Equal(t, 1, cfg.PreBufferMinutes)
	assert.Equal(t, 2, cfg.PostBufferMinutes)
	assert.Equal(t, "0 4 * * *", cfg.AutoDeleteCron)
	assert.Equal(t, 5*time.Second, cfg.KillTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TVGATE_DATA", "/tmp/tvgate-test")
	t.Setenv("TVGATE_STREAM_INACTIVITY_TIMEOUT", "2m")
	t.Setenv("TVGATE_DVR_MAX_CONCURRENT", "3")

	cfg := FromEnv()
	assert.Equal(t, "/tmp/tvgate-test", cfg.DataDir)
	assert.Equal(t, 2*time.Minute, cfg.InactivityTimeout)
	assert.Equal(t, 3, cfg.MaxConcurrentRecordings)
}

func TestValidate_CreatesDirectories(t *testing.T) {
	tmp := t.TempDir()
	cfg := Config{
		DataDir:                 filepath.Join(tmp, "data"),
		RecordingsDir:           filepath.Join(tmp, "data", "recordings"),
		MaxConcurrentRecordings: 1,
	}
	require.NoError(t, cfg.Validate())
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.RecordingsDir)
	assert.Equal(t, filepath.Join(tmp, "data", "tvgate.db"), cfg.DBPath())
}

func TestValidate_Rejects(t *testing.T) {
	assert.Error(t, Config{DataDir: "", MaxConcurrentRecordings: 1}.Validate())
	assert.Error(t, Config{DataDir: t.TempDir(), MaxConcurrentRecordings: 0}.Validate())
}
