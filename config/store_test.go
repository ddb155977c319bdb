package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/claw-manager/common"
)

func TestStoreMissingFileUsesDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "openclaw.json"))

	doc, err := store.LoadConfig()
	require.NoError(t, err)

	_, ok := doc.GatewayPort()
	assert.False(t, ok)
	assert.Equal(t, common.DefaultGatewayPort, doc.Port())
	assert.Empty(t, doc.GatewayToken())
}

func TestStoreReadsJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openclaw.json")
	body := `{
  // hand edited
  gateway: {
    port: 19001,
    auth: { token: "s3cret", },
  },
  agents: { default: "main" },
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	doc, err := NewStore(path).LoadConfig()
	require.NoError(t, err)

	port, ok := doc.GatewayPort()
	assert.True(t, ok)
	assert.Equal(t, 19001, port)
	assert.Equal(t, "s3cret", doc.GatewayToken())
}

func TestStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openclaw.json")
	require.NoError(t, os.WriteFile(path, []byte("{gateway: "), 0600))

	_, err := NewStore(path).LoadConfig()
	assert.ErrorIs(t, err, common.ErrConfigLoad)
}

func TestStoreSavePreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "openclaw.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(`{"agents":{"default":"main"},"gateway":{"port":18789}}`), 0600))

	store := NewStore(path)
	doc, err := store.LoadConfig()
	require.NoError(t, err)

	require.NoError(t, doc.SetGatewayPort(20000))
	doc.SetGatewayToken("tok")
	require.NoError(t, store.SaveConfig(doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{"default": "main"}, raw["agents"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 20000, again.Port())
	assert.Equal(t, "tok", again.GatewayToken())
}

func TestDocumentPortValidation(t *testing.T) {
	doc := NewDocument()
	assert.ErrorIs(t, doc.SetGatewayPort(0), common.ErrInvalidPort)
	assert.ErrorIs(t, doc.SetGatewayPort(70000), common.ErrInvalidPort)

	tests := []struct {
		name string
		val  any
		want int
		ok   bool
	}{
		{"float", float64(18790), 18790, true},
		{"fractional", 18790.5, 0, false},
		{"string", "18791", 18791, true},
		{"garbage", "abc", 0, false},
		{"negative", float64(-1), 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Document{raw: map[string]any{"gateway": map[string]any{"port": tt.val}}}
			got, ok := d.GatewayPort()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentClearToken(t *testing.T) {
	doc := NewDocument()
	doc.SetGatewayToken("abc")
	assert.Equal(t, "abc", doc.GatewayToken())
	doc.SetGatewayToken("")
	assert.Empty(t, doc.GatewayToken())
}

func TestDocumentModels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openclaw.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		agents: { defaults: { model: { primary: "ollama/llama3", fallback: ["lmstudio/qwen", "x"] } } },
	}`), 0600))

	doc, err := NewStore(path).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3", doc.PrimaryModel())
	assert.Equal(t, "lmstudio/qwen", doc.FallbackModel())

	empty := NewDocument()
	assert.Empty(t, empty.PrimaryModel())
	assert.Empty(t, empty.FallbackModel())
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openclaw.json")
	store := NewStore(path)

	var seen atomic.Int64
	w := NewWatcher(store, 20*time.Millisecond, func(doc *Document) {
		seen.Store(int64(doc.Port()))
	})
	require.NoError(t, w.Start(t.Context()))
	defer w.Close()

	doc := NewDocument()
	require.NoError(t, doc.SetGatewayPort(19555))
	require.NoError(t, store.SaveConfig(doc))

	assert.Eventually(t, func() bool { return seen.Load() == 19555 }, 3*time.Second, 10*time.Millisecond)
}
