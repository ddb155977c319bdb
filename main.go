// Package main provides the entry point for Claw Manager.
// Claw Manager supervises a local OpenClaw gateway: it starts the gateway,
// watches its health endpoint, stops it (including instances started by
// someone else) and shows its state in the system tray.
//
// Features:
//   - System tray with start, stop, restart and status actions
//   - Health probing and port reaping for orphaned gateway processes
//   - Live reload of the gateway port and token from openclaw.json
//   - Terminal dashboard and scriptable lifecycle commands
//
// Usage:
//
//	claw-manager [command] [flags]
//
// Environment:
//
//	The gateway is launched with pnpm from the OpenClaw checkout configured
//	in ~/.config/claw-manager/config.yaml.
package main

import (
	"os"

	"github.com/yllada/claw-manager/cli"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{
		Version: appVersion,
		Commit:  commitSHA,
		Date:    buildTime,
	}))
}
