package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/claw-manager/common"
)

func TestLoadFromCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "pnpm", cfg.PnpmPath)
	assert.Equal(t, common.DefaultGatewayHost, cfg.Host)
	assert.Equal(t, DefaultTimings(), cfg.Timings)
	assert.FileExists(t, path)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadFromRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	cfg.OpenClawPath = "/opt/openclaw"
	cfg.AutoApplyConfig = true
	cfg.Timings.StopSettle = 3 * time.Second
	require.NoError(t, cfg.Save())

	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/openclaw", again.OpenClawPath)
	assert.True(t, again.AutoApplyConfig)
	assert.Equal(t, 3*time.Second, again.Timings.StopSettle)
}

func TestLoadFromRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pnpm_path: pnpm\nbogus: 1\n"), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFromFillsPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "host: \"\"\nlog_level: loud\ntimings:\n  probe_timeout: 500ms\n  start_poll_attempts: -1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, common.DefaultGatewayHost, cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Timings.ProbeTimeout)
	assert.Equal(t, common.StartPollAttempts, cfg.Timings.StartPollAttempts)
	assert.Equal(t, "pnpm", cfg.PnpmPath)
}

func TestResolvedHistoryPath(t *testing.T) {
	cfg := &Config{HistoryPath: "/tmp/h.db"}
	p, err := cfg.ResolvedHistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/h.db", p)

	t.Setenv("HOME", t.TempDir())
	cfg.HistoryPath = ""
	p, err = cfg.ResolvedHistoryPath()
	require.NoError(t, err)
	assert.Equal(t, common.HistoryFileName, filepath.Base(p))
}
