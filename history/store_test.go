package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	entries := []Entry{
		{Time: base, Kind: "log", Level: "INFO", State: "Offline", Message: "Starting gateway..."},
		{Time: base.Add(time.Second), Kind: "state", Level: "INFO", State: "Starting", Message: "Starting gateway..."},
		{Time: base.Add(2 * time.Second), Kind: "log", Level: "warning", State: "Error", Message: "Gateway failed to start"},
		{Time: base.Add(3 * time.Second), Kind: "log", Level: "ERROR", State: "Error", Message: "Error starting gateway: boom"},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}

	all, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Starting gateway...", all[0].Message)
	assert.Equal(t, "WARN", all[2].Level)
	assert.Equal(t, "manager", all[3].Source)
	assert.True(t, all[3].Time.Equal(base.Add(3*time.Second)))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"level", Filter{Level: "error"}, []string{"Error starting gateway: boom"}},
		{"warning alias", Filter{Level: "WARNING"}, []string{"Gateway failed to start"}},
		{"all", Filter{Level: "ALL", Limit: 1}, []string{"Error starting gateway: boom"}},
		{"search", Filter{Search: "FAILED"}, []string{"Gateway failed to start"}},
		{"search level", Filter{Search: "warn"}, []string{"Gateway failed to start"}},
		{"since", Filter{Since: base.Add(2 * time.Second)}, []string{"Gateway failed to start", "Error starting gateway: boom"}},
		{"limit keeps newest", Filter{Limit: 2}, []string{"Gateway failed to start", "Error starting gateway: boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Recent(ctx, tt.filter)
			require.NoError(t, err)
			var msgs []string
			for _, e := range got {
				msgs = append(msgs, e.Message)
			}
			assert.Equal(t, tt.want, msgs)
		})
	}
}

func TestStorePrune(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	base := time.Now()
	for i := range 5 {
		require.NoError(t, s.Append(ctx, Entry{Time: base.Add(time.Duration(i) * time.Second), Kind: "log", Level: "INFO", Message: "m"}))
	}

	n, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestStoreObserverRecordsEvents(t *testing.T) {
	s := openTestStore(t)
	obs := s.Observer()

	obs(gateway.Event{Time: time.Now(), Kind: gateway.EventLog, Level: common.LevelWarn, Message: "careful", State: gateway.StateStopping})
	obs(gateway.Event{Time: time.Now().Add(time.Millisecond), Kind: gateway.EventState, Level: common.LevelInfo, Message: "Gateway stopped", State: gateway.StateOffline})

	got, err := s.Recent(t.Context(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "log", got[0].Kind)
	assert.Equal(t, "WARN", got[0].Level)
	assert.Equal(t, "Stopping", got[0].State)
	assert.Equal(t, "state", got[1].Kind)
	assert.Equal(t, "Offline", got[1].State)
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(t.Context(), Entry{Kind: "log", Level: "INFO", Message: "kept"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(t.Context(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Message)
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(t.Context(), Entry{Kind: "log", Level: "DEBUG", Message: "x"}))
	got, err := s.Recent(t.Context(), Filter{Level: "debug"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = os.Stat(":memory:")
	assert.True(t, os.IsNotExist(err))
}

func TestFilterMatches(t *testing.T) {
	e := Entry{Time: time.Unix(100, 0), Level: "warning", Message: "Port 18789 busy"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"level match", Filter{Level: "warn"}, true},
		{"level mismatch", Filter{Level: "ERROR"}, false},
		{"search", Filter{Search: "18789"}, true},
		{"search miss", Filter{Search: "nope"}, false},
		{"since after", Filter{Since: time.Unix(200, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
}
