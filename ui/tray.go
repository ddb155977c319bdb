// Package ui provides the system tray front end for Claw Manager.
// This file contains the system tray indicator functionality.
package ui

import (
	"context"
	"fmt"
	"sync"

	"fyne.io/systray"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
)

// menuState says which lifecycle actions are offered in a given state.
type menuState struct {
	start, stop, restart, check bool
}

func menuStateFor(st gateway.State) menuState {
	if st.Busy() {
		return menuState{}
	}
	return menuState{
		start:   st != gateway.StateOnline,
		stop:    true,
		restart: true,
		check:   true,
	}
}

func statusTitle(st gateway.State) string {
	switch st {
	case gateway.StateOnline:
		return "●  Gateway Online"
	case gateway.StateStarting:
		return "⟳  Starting..."
	case gateway.StateStopping:
		return "⟳  Stopping..."
	case gateway.StateError:
		return "✕  Gateway Error"
	case gateway.StateOffline:
		return "○  Gateway Offline"
	default:
		return "○  Status Unknown"
	}
}

// TrayIndicator manages the system tray icon and menu.
type TrayIndicator struct {
	app   *Application
	icons IconCache

	statusItem   *systray.MenuItem
	endpointItem *systray.MenuItem
	startItem    *systray.MenuItem
	stopItem     *systray.MenuItem
	restartItem  *systray.MenuItem
	checkItem    *systray.MenuItem

	// pending holds state changes not yet drawn; wake nudges processUpdates.
	mu          sync.Mutex
	pending     []gateway.State
	wake        chan struct{}
	draw        func(gateway.State)
	unsubscribe func()
}

// NewTrayIndicator creates a new system tray indicator.
func NewTrayIndicator(app *Application) *TrayIndicator {
	t := &TrayIndicator{
		app:   app,
		icons: NewIconCache(),
		wake:  make(chan struct{}, 1),
	}
	t.draw = t.render
	return t
}

// Run starts the system tray indicator. It blocks until Quit.
func (t *TrayIndicator) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *TrayIndicator) onReady() {
	sup := t.app.supervisor

	systray.SetIcon(t.icons.For(gateway.StateUnknown))
	systray.SetTitle(common.AppName)
	systray.SetTooltip(common.AppName + " - " + sup.StatusText())

	t.statusItem = systray.AddMenuItem(statusTitle(gateway.StateUnknown), "Gateway status")
	t.statusItem.Disable()
	t.endpointItem = systray.AddMenuItem("    "+sup.Endpoint().BaseURL, "Gateway address")
	t.endpointItem.Disable()

	systray.AddSeparator()

	t.startItem = systray.AddMenuItem("▶  Start Gateway", "Launch the gateway")
	t.stopItem = systray.AddMenuItem("⏹  Stop Gateway", "Stop the gateway")
	t.restartItem = systray.AddMenuItem("⟳  Restart Gateway", "Stop and start the gateway")
	t.checkItem = systray.AddMenuItem("Check Status", "Probe the gateway health endpoint")

	systray.AddSeparator()

	webItem := systray.AddMenuItem("Open Web UI", "Open the gateway control UI in a browser")
	configItem := systray.AddMenuItem("Open Config", "Open openclaw.json")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)

	t.onClick(t.startItem, func(ctx context.Context) { _ = sup.Start(ctx) })
	t.onClick(t.stopItem, func(ctx context.Context) { _ = sup.Stop(ctx) })
	t.onClick(t.restartItem, func(ctx context.Context) { _ = sup.Restart(ctx) })
	t.onClick(t.checkItem, func(ctx context.Context) { sup.Status(ctx) })
	t.onClick(webItem, func(context.Context) { t.app.OpenWebUI() })
	t.onClick(configItem, func(context.Context) { t.app.OpenConfig() })
	go func() {
		for range quitItem.ClickedCh {
			t.app.Quit()
			return
		}
	}()

	t.render(gateway.StateUnknown)
	go t.processUpdates(t.app.ctx)
	t.unsubscribe = sup.Subscribe(t.handleEvent)

	// Initial status check, as on launch.
	go sup.Status(t.app.ctx)
}

// onClick runs fn off the menu goroutine for every click on item.
func (t *TrayIndicator) onClick(item *systray.MenuItem, fn func(ctx context.Context)) {
	go func() {
		for range item.ClickedCh {
			go fn(t.app.ctx)
		}
	}()
}

func (t *TrayIndicator) onExit() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	common.LogInfo("Tray indicator cleanup completed")
}

// handleEvent runs on the supervisor's goroutine, so it only queues the
// state and returns.
func (t *TrayIndicator) handleEvent(ev gateway.Event) {
	if ev.Kind != gateway.EventState {
		return
	}

	t.mu.Lock()
	t.pending = append(t.pending, ev.State)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// processUpdates redraws the tray and sends notifications for queued
// states, in order, until ctx is done.
func (t *TrayIndicator) processUpdates(ctx context.Context) {
	last := gateway.StateUnknown
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.wake:
		}

		t.mu.Lock()
		batch := t.pending
		t.pending = nil
		t.mu.Unlock()

		for _, st := range batch {
			from := last
			last = st
			t.draw(st)
			if n, ok := NotificationForTransition(from, st, t.app.supervisor.Endpoint()); ok {
				if err := t.app.notifier.Show(n); err != nil {
					common.LogDebug("Notification %q not shown: %v", n.Title, err)
				}
			}
		}
	}
}

func (t *TrayIndicator) render(st gateway.State) {
	sup := t.app.supervisor

	systray.SetIcon(t.icons.For(st))
	systray.SetTooltip(fmt.Sprintf("%s - %s", common.AppName, sup.StatusText()))

	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle(statusTitle(st))
	t.endpointItem.SetTitle("    " + sup.Endpoint().BaseURL)

	ms := menuStateFor(st)
	setEnabled(t.startItem, ms.start)
	setEnabled(t.stopItem, ms.stop)
	setEnabled(t.restartItem, ms.restart)
	setEnabled(t.checkItem, ms.check)
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}
