package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
	"github.com/yllada/claw-manager/gateway"
	"github.com/yllada/claw-manager/history"
	"github.com/yllada/claw-manager/keyring"
)

// historyKeep bounds the event history kept across runs.
const historyKeep = 5000

// Runtime is the wired application: settings, the gateway config store,
// the supervisor and its collaborators. Every command builds one.
type Runtime struct {
	Config     *config.Config
	Store      *config.Store
	Vault      common.CredentialStore
	Metrics    *gateway.Metrics
	Supervisor *gateway.Supervisor
	// History is nil when the database could not be opened.
	History *history.Store

	resolver gateway.EndpointResolver
	closers  []func() error
}

// runtimeOptions overrides collaborators, mostly for tests.
type runtimeOptions struct {
	vault      common.CredentialStore
	prober     gateway.Prober
	launcher   gateway.Launcher
	noHistory  bool
	terminator []gateway.ProcessTerminator
}

// newRuntime wires everything from cfg.
func newRuntime(cfg *config.Config, opts runtimeOptions) *Runtime {
	rt := &Runtime{
		Config:  cfg,
		Store:   config.NewStore(cfg.GatewayConfigPath),
		Vault:   opts.vault,
		Metrics: gateway.NewMetrics(),
	}
	if rt.Vault == nil {
		rt.Vault = keyring.Default()
	}
	rt.resolver = withVaultToken(gateway.StoreResolver(rt.Store, cfg.Host), rt.Vault)

	rt.Supervisor = gateway.NewSupervisor(gateway.Options{
		Resolver:    rt.resolver,
		Prober:      opts.prober,
		Launcher:    opts.launcher,
		Terminators: opts.terminator,
		LaunchSpec: gateway.LaunchSpec{
			PnpmPath: cfg.PnpmPath,
			WorkDir:  cfg.OpenClawPath,
			LogPath:  filepath.Join(common.GetLogDir(), common.GatewayLogFileName),
		},
		Timings: cfg.Timings,
		Metrics: rt.Metrics,
	})

	if !opts.noHistory {
		rt.openHistory()
	}
	return rt
}

func (rt *Runtime) openHistory() {
	path, err := rt.Config.ResolvedHistoryPath()
	if err != nil {
		common.LogWarn("Event history disabled: %v", err)
		return
	}
	h, err := history.Open(path)
	if err != nil {
		common.LogWarn("Event history disabled: %v", err)
		return
	}
	if _, err := h.Prune(context.Background(), historyKeep); err != nil {
		common.LogDebug("Pruning history: %v", err)
	}
	rt.History = h
	unsubscribe := rt.Supervisor.Subscribe(h.Observer())
	rt.closers = append(rt.closers, func() error {
		unsubscribe()
		return h.Close()
	})
}

// withVaultToken fills in the auth token from the credential store when the
// gateway config has none.
func withVaultToken(next gateway.EndpointResolver, vault common.CredentialStore) gateway.EndpointResolver {
	return func() (gateway.Endpoint, error) {
		ep, err := next()
		if ep.AuthToken == "" && vault != nil {
			if tok, verr := vault.Get(keyring.GatewayTokenKey); verr == nil {
				ep.AuthToken = tok
			}
		}
		return ep, err
	}
}

// ServeMetrics exposes /metrics on Config.MetricsAddr until ctx is done.
// It is a no-op when no address is configured.
func (rt *Runtime) ServeMetrics(ctx context.Context) error {
	addr := rt.Config.MetricsAddr
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	common.LogInfo("Serving metrics on http://%s/metrics", listener.Addr())

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogWarn("Metrics server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return nil
}

// WatchConfig follows the gateway config document when Config.WatchConfig
// is set.
func (rt *Runtime) WatchConfig(ctx context.Context) error {
	if !rt.Config.WatchConfig {
		return nil
	}
	w := config.NewWatcher(rt.Store, common.ConfigWatchDebounce, func(*config.Document) {
		rt.applyConfigChange(ctx)
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watching %s: %w", rt.Store.Path(), err)
	}
	rt.closers = append(rt.closers, w.Close)
	return nil
}

// applyConfigChange reacts to an edited openclaw.json. A running gateway is
// restarted only with auto_apply_config; otherwise the new endpoint is
// picked up at the next restart.
func (rt *Runtime) applyConfigChange(ctx context.Context) {
	sup := rt.Supervisor
	next, err := rt.resolver()
	if err != nil {
		common.LogWarn("Reading changed gateway config: %v", err)
		return
	}
	if next.Equal(sup.Endpoint()) {
		return
	}

	switch st := sup.State(); {
	case st.Busy():
		common.LogInfo("Gateway config changed during a transition; it will apply on the next restart")
	case st == gateway.StateOnline && rt.Config.AutoApplyConfig:
		go func() {
			_ = sup.RestartWithMessage(ctx, "Gateway config changed, restarting gateway...")
		}()
	case st == gateway.StateOnline:
		common.LogInfo("Gateway config changed (%s); restart the gateway to apply it", next.BaseURL)
	default:
		sup.ReloadEndpoint()
	}
}

// Close releases the history database and stops the watcher.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
