package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/claw-manager/common"
)

func writeSession(t *testing.T, dir, id, messages string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(path, 0700))
	if messages != "" {
		require.NoError(t, os.WriteFile(filepath.Join(path, "messages.json"), []byte(messages), 0600))
	}
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestListSessions(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, dir string)
		limit    int
		ids      []string
		messages []int
		models   []string
	}{
		{
			name:     "missing dir",
			setup:    func(t *testing.T, dir string) { require.NoError(t, os.Remove(dir)) },
			limit:    DefaultSessionLimit,
			ids:      []string{common.DefaultSessionID},
			messages: []int{0},
			models:   []string{"Active session"},
		},
		{
			name: "newest first with models",
			setup: func(t *testing.T, dir string) {
				writeSession(t, dir, "old", `[{"role":"user"}]`, time.Hour)
				writeSession(t, dir, "new", `[{"role":"user"},{"role":"assistant","model":"claude-sonnet"},{"model":"other"}]`, time.Minute)
				writeSession(t, dir, "empty", "", 2*time.Hour)
				writeSession(t, dir, "broken", `{"not":"a list"}`, 3*time.Hour)
			},
			limit:    DefaultSessionLimit,
			ids:      []string{common.DefaultSessionID, "new", "old", "empty", "broken"},
			messages: []int{0, 3, 1, 0, 0},
			models:   []string{"Active session", "claude-sonnet", "Unknown", "Unknown", "Unknown"},
		},
		{
			name: "limit and stray files",
			setup: func(t *testing.T, dir string) {
				writeSession(t, dir, "a", `[]`, 3*time.Minute)
				writeSession(t, dir, "b", `[]`, 2*time.Minute)
				writeSession(t, dir, "c", `[]`, time.Minute)
				require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
			},
			limit:    2,
			ids:      []string{common.DefaultSessionID, "c", "b"},
			messages: []int{0, 0, 0},
			models:   []string{"Active session", "Unknown", "Unknown"},
		},
		{
			name: "saved active session is not listed twice",
			setup: func(t *testing.T, dir string) {
				writeSession(t, dir, common.DefaultSessionID, `[{"model":"x"}]`, time.Minute)
			},
			limit:    DefaultSessionLimit,
			ids:      []string{common.DefaultSessionID},
			messages: []int{0},
			models:   []string{"Active session"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "sessions")
			require.NoError(t, os.Mkdir(dir, 0700))
			tt.setup(t, dir)

			sessions, err := ListSessions(dir, tt.limit)
			require.NoError(t, err)

			var ids, models []string
			var messages []int
			for _, s := range sessions {
				ids = append(ids, s.ID)
				messages = append(messages, s.Messages)
				models = append(models, s.Model)
			}
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.messages, messages)
			assert.Equal(t, tt.models, models)
			assert.True(t, sessions[0].Active)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "s1", `[]`, 0)

	assert.ErrorIs(t, DeleteSession(dir, common.DefaultSessionID), ErrActiveSession)
	assert.Error(t, DeleteSession(dir, "../s1"))
	assert.Error(t, DeleteSession(dir, "missing"))

	require.NoError(t, DeleteSession(dir, "s1"))
	assert.NoDirExists(t, filepath.Join(dir, "s1"))
}
