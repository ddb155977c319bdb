// Package common provides shared constants, types, and utilities
// used across the Claw Manager application.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.clawmanager.app"
	// AppName is the display name of the application.
	AppName = "Claw Manager"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "claw-manager"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	LogFileName         = "claw-manager.log"
	GatewayLogFileName  = "gateway.log"
	HistoryFileName     = "history.db"
)

// Gateway defaults.
const (
	// DefaultGatewayHost is the loopback address the gateway binds to.
	DefaultGatewayHost = "127.0.0.1"
	// DefaultGatewayPort is used when the gateway config has no port.
	DefaultGatewayPort = 18789
	// GatewayConfigDirName is the gateway's own directory under $HOME.
	GatewayConfigDirName = ".openclaw"
	// GatewayConfigFileName is the gateway's JSON config document.
	GatewayConfigFileName = "openclaw.json"
	// HealthPath is appended to the base URL for liveness probes.
	HealthPath = "/health"
	// LaunchMarker tags the shell hosting the gateway so stragglers can be found.
	LaunchMarker = "openclaw"
	// DefaultSessionID is the agent session used when none is given.
	DefaultSessionID = "gui-session"
)

// Default timeouts and intervals.
const (
	// ProbeTimeout bounds a single health probe.
	ProbeTimeout = 2 * time.Second
	// StartPollInterval is the wait before each post-launch probe.
	StartPollInterval = 1 * time.Second
	// StartPollAttempts is how many post-launch probes are made.
	StartPollAttempts = 10
	// StopSettleDelay is the wait between terminating and confirming.
	StopSettleDelay = 1500 * time.Millisecond
	// RestartSettleDelay is the wait between stop and start on restart.
	RestartSettleDelay = 2 * time.Second
	// ConfigWatchDebounce coalesces bursts of config file writes.
	ConfigWatchDebounce = 500 * time.Millisecond
	// AgentTimeout bounds a one-shot agent invocation.
	AgentTimeout = 5 * time.Minute
)

// UI constants.
const (
	// TrayIconSize is the size of the system tray icon.
	TrayIconSize = 22
	// HistoryDefaultLimit is how many events the logs view shows by default.
	HistoryDefaultLimit = 200
)
