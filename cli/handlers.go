package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
	"github.com/yllada/claw-manager/gateway"
	"github.com/yllada/claw-manager/history"
	"github.com/yllada/claw-manager/keyring"
	"github.com/yllada/claw-manager/providers"
	"github.com/yllada/claw-manager/tui"
	"github.com/yllada/claw-manager/ui"
)

// The gateway keeps many log files; only the recent ones matter.
const (
	gatewayLogFiles = 5
	gatewayLogTail  = 50
)

func (a *app) runTray(ctx context.Context, stopOnExit bool) error {
	rt, err := a.runtime(false)
	if err != nil {
		return err
	}
	defer a.close()

	if stopOnExit {
		rt.Config.StopOnExit = true
	}
	if err := rt.ServeMetrics(ctx); err != nil {
		common.LogWarn("Metrics disabled: %v", err)
	}
	if err := rt.WatchConfig(ctx); err != nil {
		common.LogWarn("Config watcher disabled: %v", err)
	}

	application := ui.NewApplication(ui.Options{
		Config:     rt.Config,
		Supervisor: rt.Supervisor,
		ConfigPath: rt.Store.Path(),
		Version:    a.info.Version,
	})
	if code := application.Run(ctx); code != 0 {
		return fmt.Errorf("tray exited with code %d", code)
	}
	return nil
}

type lifecycleOp int

const (
	opStart lifecycleOp = iota
	opStop
	opRestart
)

func (a *app) runLifecycle(ctx context.Context, out io.Writer, op lifecycleOp) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	sup := rt.Supervisor
	unsubscribe := sup.Subscribe(eventPrinter(out))
	defer unsubscribe()

	switch op {
	case opStart:
		err = sup.Start(ctx)
	case opStop:
		err = sup.Stop(ctx)
	case opRestart:
		err = sup.Restart(ctx)
	}
	fmt.Fprintf(out, "Gateway: %s\n", stateLabel(sup.State()))
	return err
}

func (a *app) runStatus(ctx context.Context, out io.Writer) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	sup := rt.Supervisor
	state := sup.Status(ctx)
	return writeStatusTable(out, statusRow{
		State:      state,
		Endpoint:   sup.Endpoint(),
		Owned:      sup.OwnsProcess(),
		ConfigPath: rt.Store.Path(),
	})
}

func (a *app) runWatch(ctx context.Context, poll time.Duration) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := rt.ServeMetrics(ctx); err != nil {
		common.LogWarn("Metrics disabled: %v", err)
	}
	if err := rt.WatchConfig(ctx); err != nil {
		common.LogWarn("Config watcher disabled: %v", err)
	}
	return tui.Run(ctx, rt.Supervisor, tui.Options{PollInterval: poll, Open: ui.Open})
}

func (a *app) runAgent(ctx context.Context, out, errOut io.Writer, message, session string, newSession bool, timeout time.Duration) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	if newSession {
		session = gateway.NewSessionID()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fmt.Fprintln(errOut, color.HiBlackString("session "+session))
	reply, err := gateway.RunAgent(ctx, gateway.AgentRequest{
		PnpmPath:  rt.Config.PnpmPath,
		WorkDir:   rt.Config.OpenClawPath,
		SessionID: session,
		Message:   message,
	})
	if reply.Output != "" {
		fmt.Fprintln(out, reply.Output)
	}

	entry := history.Entry{Kind: "agent", Level: "INFO", Message: fmt.Sprintf("Agent message sent (session %s)", session)}
	if err != nil {
		entry.Level = "ERROR"
		entry.Message = fmt.Sprintf("Agent error (session %s): %v", session, err)
	}
	if rt.History != nil {
		if herr := rt.History.Append(context.WithoutCancel(ctx), entry); herr != nil {
			common.LogDebug("Recording agent run: %v", herr)
		}
	}
	if err != nil {
		return err
	}
	common.LogDebug("Agent replied in %s", reply.Duration)
	return nil
}

func (a *app) runLogs(ctx context.Context, out io.Writer, filter history.Filter, gatewayLogs bool) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	var sets [][]history.Entry
	switch {
	case rt.History != nil:
		recorded, err := rt.History.Recent(ctx, filter)
		if err != nil {
			return err
		}
		sets = append(sets, recorded)
	case !gatewayLogs:
		return errors.New("event history is unavailable; see the manager log for details")
	}

	if gatewayLogs {
		entries, err := history.ReadGatewayLogs(history.GatewayLogDir(), gatewayLogFiles, gatewayLogTail)
		if err != nil {
			return fmt.Errorf("reading gateway logs: %w", err)
		}
		sets = append(sets, entries)
	}

	writeEntries(out, mergeEntries(filter, sets...))
	return nil
}

func (a *app) runConfigShow(out io.Writer) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()
	return writeSettings(out, rt)
}

func writeSettings(out io.Writer, rt *Runtime) error {
	doc, err := rt.Store.LoadConfig()
	if err != nil {
		return err
	}

	port := fmt.Sprint(doc.Port())
	if _, ok := doc.GatewayPort(); !ok {
		port += " (default)"
	}
	token := "-"
	if t := doc.GatewayToken(); t != "" {
		token = common.MaskSecret(t)
	} else if t, err := rt.Vault.Get(keyring.GatewayTokenKey); err == nil {
		token = common.MaskSecret(t) + " (keyring)"
	}
	configPath := rt.Store.Path()
	if !common.FileExists(configPath) {
		configPath += " (missing)"
	}
	metrics := rt.Config.MetricsAddr
	if metrics == "" {
		metrics = "disabled"
	}
	historyPath, _ := rt.Config.ResolvedHistoryPath()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Settings file", rt.Config.Path()},
		{"Gateway config", configPath},
		{"OpenClaw path", rt.Config.OpenClawPath},
		{"pnpm", rt.Config.PnpmPath},
		{"Host", rt.Config.Host},
		{"Port", port},
		{"Token", token},
		{"Primary model", orDash(doc.PrimaryModel())},
		{"Fallback model", orDash(doc.FallbackModel())},
		{"Metrics", metrics},
		{"History", historyPath},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) runSetPort(ctx context.Context, out io.Writer, port int, restart bool) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()
	return setPort(ctx, out, rt, port, restart)
}

func setPort(ctx context.Context, out io.Writer, rt *Runtime, port int, restart bool) error {
	doc, err := rt.Store.LoadConfig()
	if err != nil {
		return err
	}
	if err := doc.SetGatewayPort(port); err != nil {
		return err
	}
	if err := rt.Store.SaveConfig(doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Gateway port set to %d\n", color.GreenString("✓"), port)
	return maybeRestart(ctx, out, rt, restart)
}

func (a *app) runSetToken(ctx context.Context, in io.Reader, out io.Writer, clearToken, restart bool) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	token := ""
	if !clearToken {
		token = readSecret(in, out, "Gateway token")
		if token == "" {
			return errors.New("token cannot be empty (use --clear to remove it)")
		}
	}
	return setToken(ctx, out, rt, token, restart)
}

// setToken writes token to openclaw.json and mirrors it in the credential
// store. An empty token removes it from both.
func setToken(ctx context.Context, out io.Writer, rt *Runtime, token string, restart bool) error {
	doc, err := rt.Store.LoadConfig()
	if err != nil {
		return err
	}
	doc.SetGatewayToken(token)
	if err := rt.Store.SaveConfig(doc); err != nil {
		return err
	}

	if token == "" {
		if err := rt.Vault.Delete(keyring.GatewayTokenKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			common.LogWarn("Removing token from keyring: %v", err)
		}
		fmt.Fprintf(out, "%s Gateway token removed\n", color.GreenString("✓"))
	} else {
		if err := rt.Vault.Store(keyring.GatewayTokenKey, token); err != nil {
			common.LogWarn("Saving token to keyring: %v", err)
		}
		fmt.Fprintf(out, "%s Gateway token set (%s)\n", color.GreenString("✓"), common.MaskSecret(token))
	}
	return maybeRestart(ctx, out, rt, restart)
}

func maybeRestart(ctx context.Context, out io.Writer, rt *Runtime, restart bool) error {
	if !restart {
		fmt.Fprintln(out, "Restart the gateway to apply the change: claw-manager restart")
		return nil
	}
	unsubscribe := rt.Supervisor.Subscribe(eventPrinter(out))
	defer unsubscribe()
	return rt.Supervisor.Restart(ctx)
}

// readSecret prompts for a value without echo when in is a terminal.
func readSecret(in io.Reader, out io.Writer, label string) string {
	fmt.Fprintf(out, "%s: ", label)
	if f, ok := in.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			text, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err == nil {
				return strings.TrimSpace(string(text))
			}
		}
	}
	text, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && text == "" {
		return ""
	}
	return strings.TrimSpace(text)
}

func (a *app) runOpen(out io.Writer, target string) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	switch target {
	case "web":
		ep := rt.Supervisor.Endpoint()
		fmt.Fprintf(out, "Opening %s\n", ep.BaseURL)
		return ui.Open(ep.WebURL())
	case "config":
		path := rt.Store.Path()
		if !common.FileExists(path) {
			return fmt.Errorf("%s does not exist yet; set a port or token first", path)
		}
		fmt.Fprintf(out, "Opening %s\n", path)
		return ui.Open(path)
	}
	return fmt.Errorf("unknown target %q", target)
}

func (a *app) runModels(ctx context.Context, out io.Writer) error {
	rt, err := a.runtime(true)
	if err != nil {
		return err
	}
	defer a.close()

	doc, err := rt.Store.LoadConfig()
	if err != nil {
		common.LogWarn("Reading gateway config: %v", err)
		doc = config.NewDocument()
	}
	writeModels(out, doc, providers.ListAll(ctx, providers.Defaults()))
	return nil
}

func writeModels(out io.Writer, doc *config.Document, listings []providers.Listing) {
	fmt.Fprintf(out, "Primary model:   %s\n", orDash(doc.PrimaryModel()))
	fmt.Fprintf(out, "Fallback model:  %s\n", orDash(doc.FallbackModel()))

	for _, l := range listings {
		fmt.Fprintln(out)
		if !l.Available() {
			fmt.Fprintf(out, "%s: %s\n", l.Provider, color.HiBlackString("not running"))
			continue
		}
		fmt.Fprintf(out, "%s: %d models\n", l.Provider, len(l.Models))
		for _, m := range l.Models {
			fmt.Fprintf(out, "  - %s\n", m)
		}
	}
}

func (a *app) runSessions(out io.Writer, limit int) error {
	if _, err := a.runtime(true); err != nil {
		return err
	}
	defer a.close()

	sessions, err := history.ListSessions(history.SessionDir(), limit)
	if err != nil {
		common.LogWarn("Listing sessions: %v", err)
	}
	return writeSessions(out, sessions)
}

func (a *app) runDeleteSession(out io.Writer, id string) error {
	if _, err := a.runtime(true); err != nil {
		return err
	}
	defer a.close()

	if err := history.DeleteSession(history.SessionDir(), id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted session %s\n", id)
	return nil
}
