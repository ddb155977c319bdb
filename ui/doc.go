// Package ui provides the system tray front end for Claw Manager.
//
// The tray shows the gateway state as a colored badge and offers Start,
// Stop, Restart and Check Status actions plus shortcuts to the gateway's
// web UI and its openclaw.json. Every action runs on its own goroutine
// so the menu never blocks on the supervisor.
//
// # Architecture
//
//   - Application: owns the supervisor handle, quit handling and the
//     stop_on_exit policy
//   - TrayIndicator: systray menu, subscribed to supervisor events
//   - IconGenerator: renders one PNG badge per gateway state
//   - DesktopNotifier: freedesktop notifications over D-Bus, with
//     notify-send as fallback
//
// # File Organization
//
//   - app.go: Application lifecycle
//   - tray.go: System tray indicator
//   - icons.go: Icon generation for tray
//   - notifications.go: Desktop notification integration
//   - open.go: Launching the browser or editor
package ui
