package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
	"github.com/yllada/claw-manager/gateway"
	"github.com/yllada/claw-manager/history"
	"github.com/yllada/claw-manager/keyring"
	"github.com/yllada/claw-manager/providers"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type stubProber struct{ healthy atomic.Bool }

func (p *stubProber) Probe(context.Context, string, time.Duration) bool { return p.healthy.Load() }

type testEnv struct {
	rt     *Runtime
	prober *stubProber
	vault  *keyring.Vault
	doc    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.GatewayConfigPath = filepath.Join(dir, "openclaw.json")
	cfg.HistoryPath = filepath.Join(dir, "history.db")

	env := &testEnv{prober: &stubProber{}, vault: keyring.NewLocal(dir), doc: cfg.GatewayConfigPath}
	env.rt = newRuntime(cfg, runtimeOptions{
		vault:      env.vault,
		prober:     env.prober,
		noHistory:  true,
		terminator: []gateway.ProcessTerminator{},
	})
	t.Cleanup(func() { _ = env.rt.Close() })
	return env
}

func (e *testEnv) writeDoc(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.doc, []byte(content), 0600))
}

func TestBuildRootCmd(t *testing.T) {
	root := BuildRootCmd(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"})

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"tray", "start", "stop", "restart", "status", "watch", "agent", "logs", "config", "open", "models", "sessions"} {
		assert.True(t, names[want], "missing command %q", want)
	}
	assert.Contains(t, root.Version, "1.2.3")
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestAgentRejectsConflictingSessionFlags(t *testing.T) {
	root := BuildRootCmd(BuildInfo{Version: "dev"})
	root.SetArgs([]string{"agent", "--new-session", "--session", "session-x", "hello"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestSetPortRejectsNonNumeric(t *testing.T) {
	root := BuildRootCmd(BuildInfo{Version: "dev"})
	root.SetArgs([]string{"config", "set-port", "eighty"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	assert.ErrorIs(t, err, common.ErrInvalidPort)
}

func TestWithVaultToken(t *testing.T) {
	vault := keyring.NewLocal(t.TempDir())

	bare := gateway.NewEndpoint("", 18789, "")
	resolve := withVaultToken(gateway.StaticResolver(bare), vault)

	ep, err := resolve()
	require.NoError(t, err)
	assert.Empty(t, ep.AuthToken)

	require.NoError(t, vault.Store(keyring.GatewayTokenKey, "from-keyring"))
	ep, err = resolve()
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", ep.AuthToken)

	withToken := gateway.NewEndpoint("", 18789, "from-config")
	ep, err = withVaultToken(gateway.StaticResolver(withToken), vault)()
	require.NoError(t, err)
	assert.Equal(t, "from-config", ep.AuthToken)
}

func TestApplyConfigChange(t *testing.T) {
	ctx := context.Background()

	t.Run("reloads when not running", func(t *testing.T) {
		env := newTestEnv(t)
		assert.Equal(t, common.DefaultGatewayPort, env.rt.Supervisor.Endpoint().Port)

		env.writeDoc(t, `{gateway: {port: 19001}}`)
		env.rt.applyConfigChange(ctx)
		assert.Equal(t, 19001, env.rt.Supervisor.Endpoint().Port)
	})

	t.Run("keeps endpoint while online without auto apply", func(t *testing.T) {
		env := newTestEnv(t)
		env.prober.healthy.Store(true)
		require.Equal(t, gateway.StateOnline, env.rt.Supervisor.Status(ctx))

		env.writeDoc(t, `{gateway: {port: 19002}}`)
		env.rt.applyConfigChange(ctx)
		assert.Equal(t, common.DefaultGatewayPort, env.rt.Supervisor.Endpoint().Port)
		assert.Equal(t, gateway.StateOnline, env.rt.Supervisor.State())
	})

	t.Run("unchanged endpoint is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		var logs int
		unsubscribe := env.rt.Supervisor.Subscribe(func(ev gateway.Event) {
			if ev.Kind == gateway.EventLog {
				logs++
			}
		})
		defer unsubscribe()

		env.rt.applyConfigChange(ctx)
		assert.Zero(t, logs)
	})
}

func TestSetPort(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer

	require.NoError(t, setPort(context.Background(), &out, env.rt, 19005, false))
	assert.Contains(t, out.String(), "Gateway port set to 19005")
	assert.Contains(t, out.String(), "claw-manager restart")

	doc, err := env.rt.Store.LoadConfig()
	require.NoError(t, err)
	port, ok := doc.GatewayPort()
	assert.True(t, ok)
	assert.Equal(t, 19005, port)

	err = setPort(context.Background(), &out, env.rt, 70000, false)
	assert.ErrorIs(t, err, common.ErrInvalidPort)
}

func TestSetToken(t *testing.T) {
	env := newTestEnv(t)
	env.writeDoc(t, `{gateway: {port: 19003}}`)
	var out bytes.Buffer

	require.NoError(t, setToken(context.Background(), &out, env.rt, "secret-token-value", false))
	assert.Contains(t, out.String(), "secr")
	assert.NotContains(t, out.String(), "secret-token-value")

	doc, err := env.rt.Store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "secret-token-value", doc.GatewayToken())
	assert.Equal(t, 19003, doc.Port())
	stored, err := env.vault.Get(keyring.GatewayTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "secret-token-value", stored)

	out.Reset()
	require.NoError(t, setToken(context.Background(), &out, env.rt, "", false))
	assert.Contains(t, out.String(), "Gateway token removed")
	doc, err = env.rt.Store.LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, doc.GatewayToken())
	_, err = env.vault.Get(keyring.GatewayTokenKey)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestReadSecret(t *testing.T) {
	var out bytes.Buffer
	got := readSecret(strings.NewReader("  abc123  \nignored\n"), &out, "Gateway token")
	assert.Equal(t, "abc123", got)
	assert.Equal(t, "Gateway token: ", out.String())

	assert.Empty(t, readSecret(strings.NewReader(""), &out, "x"))
	assert.Equal(t, "tail", readSecret(strings.NewReader("tail"), &out, "x"))
}

func TestWriteStatusTable(t *testing.T) {
	var out bytes.Buffer
	err := writeStatusTable(&out, statusRow{
		State:      gateway.StateOnline,
		Endpoint:   gateway.NewEndpoint("", 19001, "abcd1234efgh5678"),
		Owned:      true,
		ConfigPath: "/tmp/openclaw.json",
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STATE"))
	assert.Contains(t, lines[2], "ONLINE")
	assert.Contains(t, lines[2], "http://127.0.0.1:19001")
	assert.Contains(t, lines[2], "Yes")
	assert.Contains(t, lines[2], "abcd********5678")
	assert.Contains(t, lines[2], "/tmp/openclaw.json")
}

func TestWriteSettings(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	require.NoError(t, writeSettings(&out, env.rt))

	text := out.String()
	assert.Contains(t, text, "18789 (default)")
	assert.Contains(t, text, "(missing)")
	assert.Contains(t, text, "disabled")

	env.writeDoc(t, `{
		gateway: {port: 19010, auth: {token: "tok-123456789"}},
		agents: {defaults: {model: {primary: "ollama/llama3", fallback: ["lmstudio/qwen"]}}},
	}`)
	out.Reset()
	require.NoError(t, writeSettings(&out, env.rt))
	text = out.String()
	assert.Contains(t, text, "19010")
	assert.NotContains(t, text, "(default)")
	assert.Contains(t, text, "ollama/llama3")
	assert.Contains(t, text, "lmstudio/qwen")
	assert.NotContains(t, text, "tok-123456789")
}

func TestWriteModels(t *testing.T) {
	var out bytes.Buffer
	writeModels(&out, config.NewDocument(), []providers.Listing{
		{Provider: "Ollama", Models: []string{"llama3", "mistral"}},
		{Provider: "LM Studio", Err: errors.New("connection refused")},
	})

	text := out.String()
	assert.Contains(t, text, "Primary model:   -")
	assert.Contains(t, text, "Ollama: 2 models")
	assert.Contains(t, text, "  - mistral")
	assert.Contains(t, text, "LM Studio: not running")
}

func TestEventPrinter(t *testing.T) {
	var out bytes.Buffer
	printer := eventPrinter(&out)
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)

	printer(gateway.Event{Time: at, Kind: gateway.EventState, State: gateway.StateOnline, Message: "online"})
	assert.Empty(t, out.String())

	printer(gateway.Event{Time: at, Kind: gateway.EventLog, Level: common.LevelWarn, Message: "Port busy"})
	assert.Equal(t, "09:30:00 WRN Port busy\n", out.String())
}

func TestMergeEntries(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recorded := []history.Entry{
		{Time: base.Add(1 * time.Second), Level: "INFO", Message: "Starting gateway..."},
		{Time: base.Add(4 * time.Second), Level: "ERROR", Message: "Gateway failed"},
	}
	gatewayLogs := []history.Entry{
		{Time: base, Level: "INFO", Message: "listening", Source: "gateway.log"},
		{Time: base.Add(3 * time.Second), Level: "ERROR", Message: "crash", Source: "gateway.log"},
	}

	tests := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{"all in time order", history.Filter{}, []string{"listening", "Starting gateway...", "crash", "Gateway failed"}},
		{"level", history.Filter{Level: "error"}, []string{"crash", "Gateway failed"}},
		{"newest within limit", history.Filter{Limit: 2}, []string{"crash", "Gateway failed"}},
		{"search", history.Filter{Search: "GATEWAY"}, []string{"Starting gateway...", "Gateway failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range mergeEntries(tt.filter, recorded, gatewayLogs) {
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteEntries(t *testing.T) {
	var out bytes.Buffer
	writeEntries(&out, nil)
	assert.Equal(t, "No log entries found.\n", out.String())

	out.Reset()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeEntries(&out, []history.Entry{{Time: at, Level: "ERROR", Message: "boom"}})
	assert.Equal(t, "2024-05-01 12:00:00 ERR [manager] boom\n", out.String())
}

func TestWriteSessions(t *testing.T) {
	var out bytes.Buffer
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, writeSessions(&out, []history.Session{
		{ID: common.DefaultSessionID, Created: at, Model: "Active session", Active: true},
		{ID: "s1", Created: at, Messages: 4, Model: "claude-sonnet"},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "gui-session")
	assert.Contains(t, lines[2], "Current Session")
	assert.Equal(t, []string{"s1", "2024-05-01", "12:30", "4", "claude-sonnet"}, strings.Fields(lines[3]))
}
