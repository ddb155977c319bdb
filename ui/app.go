package ui

import (
	"context"
	"sync"

	"fyne.io/systray"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
	"github.com/yllada/claw-manager/gateway"
)

// Options holds what the tray application needs.
type Options struct {
	Config     *config.Config
	Supervisor *gateway.Supervisor
	ConfigPath string
	Notifier   NotificationSender
	Version    string
}

// Application represents the tray application.
type Application struct {
	ctx    context.Context
	cancel context.CancelFunc

	config     *config.Config
	supervisor *gateway.Supervisor
	configPath string
	notifier   NotificationSender
	version    string
	tray       *TrayIndicator

	// open is swapped in tests.
	open     func(target string) error
	quitOnce sync.Once
}

// NewApplication creates a new application.
func NewApplication(opts Options) *Application {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = &DesktopNotifier{Enabled: cfg.ShowNotifications}
	}
	a := &Application{
		config:     cfg,
		supervisor: opts.Supervisor,
		configPath: opts.ConfigPath,
		notifier:   notifier,
		version:    opts.Version,
		open:       Open,
	}
	a.tray = NewTrayIndicator(a)
	return a
}

// Run shows the tray and blocks until Quit or ctx is cancelled.
func (a *Application) Run(ctx context.Context) int {
	a.ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	go func() {
		<-a.ctx.Done()
		a.Quit()
	}()

	common.LogInfo("Starting %s %s tray", common.AppName, a.version)
	a.tray.Run()
	return 0
}

// OpenWebUI opens the gateway control UI, with its token, in a browser.
func (a *Application) OpenWebUI() {
	url := a.supervisor.Endpoint().WebURL()
	if err := a.open(url); err != nil {
		common.LogWarn("Opening web UI failed: %v", err)
	}
}

// OpenConfig opens openclaw.json in the default editor.
func (a *Application) OpenConfig() {
	if a.configPath == "" {
		return
	}
	if err := a.open(a.configPath); err != nil {
		common.LogWarn("Opening config failed: %v", err)
	}
}

// Quit stops the gateway when configured to, then closes the tray.
func (a *Application) Quit() {
	a.quitOnce.Do(func() {
		a.stopOnExit()
		systray.Quit()
	})
}

func (a *Application) stopOnExit() {
	if !a.config.StopOnExit {
		return
	}
	st := a.supervisor.State()
	if st != gateway.StateOnline && st != gateway.StateStarting && !a.supervisor.OwnsProcess() {
		return
	}
	common.LogInfo("Gateway is still running, stopping it before exit")
	// The app context may already be cancelled by a signal.
	if err := a.supervisor.Stop(context.WithoutCancel(a.ctx)); err != nil {
		common.LogWarn("Stopping gateway on exit: %v", err)
	}
}

// Supervisor returns the gateway supervisor.
func (a *Application) Supervisor() *gateway.Supervisor {
	return a.supervisor
}

// GetVersion returns the application version
func (a *Application) GetVersion() string {
	return a.version
}
