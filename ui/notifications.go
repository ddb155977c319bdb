// Package ui provides the system tray front end for Claw Manager.
// This file contains desktop notifications for gateway events.
package ui

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// Notification represents a system notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Icon    string
}

func (n Notification) icon() string {
	if n.Icon != "" {
		return n.Icon
	}
	switch n.Type {
	case NotificationWarning:
		return "dialog-warning"
	case NotificationError:
		return "dialog-error"
	default:
		return "network-server"
	}
}

// urgency follows the freedesktop hint values: 0 low, 1 normal, 2 critical.
func (n Notification) urgency() byte {
	switch n.Type {
	case NotificationError:
		return 2
	case NotificationWarning:
		return 1
	default:
		return 0
	}
}

func (n Notification) urgencyName() string {
	return [...]string{"low", "normal", "critical"}[n.urgency()]
}

// notifyTimeout bounds one delivery attempt; a wedged notification daemon
// must not stall the tray.
const notifyTimeout = 5 * time.Second

const (
	notifyDest = "org.freedesktop.Notifications"
	notifyPath = "/org/freedesktop/Notifications"
	notifyCall = notifyDest + ".Notify"
)

// NotificationSender shows a notification.
type NotificationSender interface {
	Show(n Notification) error
}

// DesktopNotifier sends notifications over the session bus, falling back to
// notify-send. It is a no-op when disabled or off Linux.
type DesktopNotifier struct {
	Enabled bool
}

var (
	_ common.Notifier    = (*DesktopNotifier)(nil)
	_ NotificationSender = (*DesktopNotifier)(nil)
)

// Notify sends an informational notification.
func (d *DesktopNotifier) Notify(title, message string) error {
	return d.Show(Notification{Title: title, Message: message})
}

// NotifyWithIcon sends a notification with a custom icon.
func (d *DesktopNotifier) NotifyWithIcon(title, message, icon string) error {
	return d.Show(Notification{Title: title, Message: message, Icon: icon})
}

// Show displays n.
func (d *DesktopNotifier) Show(n Notification) error {
	if d == nil || !d.Enabled || runtime.GOOS != "linux" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	err := notifyDBus(ctx, n)
	if err == nil {
		return nil
	}
	common.LogDebug("D-Bus notification failed, trying notify-send: %v", err)
	if err2 := notifySend(ctx, n); err2 != nil {
		common.LogDebug("Error showing notification: %v", err2)
		return errors.Join(err, err2)
	}
	return nil
}

func notifyDBus(ctx context.Context, n Notification) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return err
	}
	obj := conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(n.urgency())}
	return obj.CallWithContext(ctx, notifyCall, 0,
		common.AppName, uint32(0), n.icon(), n.Title, n.Message,
		[]string{}, hints, int32(-1)).Err
}

func notifySend(ctx context.Context, n Notification) error {
	return exec.CommandContext(ctx, "notify-send",
		"--app-name="+common.AppName,
		"--icon="+n.icon(),
		"--urgency="+n.urgencyName(),
		n.Title,
		n.Message,
	).Run()
}

// NotificationForTransition returns what to show when the gateway moves
// from one state to another, or false when nothing should be shown.
func NotificationForTransition(from, to gateway.State, endpoint gateway.Endpoint) (Notification, bool) {
	switch {
	case to == gateway.StateOnline && from != gateway.StateOnline:
		return Notification{
			Title:   "Gateway online",
			Message: "Listening on " + endpoint.BaseURL,
			Type:    NotificationSuccess,
		}, true
	case to == gateway.StateOffline && from == gateway.StateOnline:
		return Notification{
			Title:   "Gateway offline",
			Message: "The gateway stopped responding on " + endpoint.BaseURL,
			Type:    NotificationWarning,
		}, true
	case to == gateway.StateOffline && from == gateway.StateStopping:
		return Notification{Title: "Gateway stopped", Message: "The gateway was stopped", Type: NotificationInfo}, true
	case to == gateway.StateError && from != gateway.StateError:
		return Notification{
			Title:   "Gateway error",
			Message: "The gateway did not start or stop cleanly. See the log for details.",
			Type:    NotificationError,
		}, true
	}
	return Notification{}, false
}
