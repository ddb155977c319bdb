//go:build !windows

package gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerMatches(t *testing.T) {
	tests := []struct {
		cmdline string
		want    bool
	}{
		{"/usr/bin/pnpm openclaw gateway run --verbose", true},
		{"node /home/u/openclaw/dist/index.js gateway run --verbose", true},
		{"node /home/u/OpenClaw/openclaw.mjs gateway run", true},
		{"pnpm openclaw agent --session-id gui-session --message hi", false},
		{"claw-manager start", false},
		{"vim openclaw.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.cmdline, func(t *testing.T) {
			assert.Equal(t, tt.want, markerMatches(tt.cmdline, "openclaw"))
		})
	}
}

func TestManagedProcessReportsExit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "gateway.log")
	before := time.Now()

	h, err := NewExecLauncher().Launch(context.Background(), LaunchSpec{
		PnpmPath: "sh",
		Args:     []string{"-c", "echo booting; exit 3"},
		WorkDir:  dir,
		LogPath:  logPath,
	})
	require.NoError(t, err)
	p, ok := h.(*ManagedProcess)
	require.True(t, ok)
	assert.False(t, p.StartedAt().Before(before))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	assert.False(t, p.Alive())
	require.Error(t, p.ExitErr())
	assert.Contains(t, p.ExitErr().Error(), "exit status 3")
	assert.Equal(t, ": exit status 3", exitDetail(p))
	assert.True(t, strings.HasPrefix(uptime(p), " (up "))
	assert.NoError(t, p.KillTree(context.Background()))

	out, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "booting")
}
