//go:build !windows

package gateway

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
)

// platformCommand runs pnpm directly in a new process group. Output is
// captured to the gateway log since there is no terminal window to show it.
func platformCommand(spec LaunchSpec) (*exec.Cmd, bool) {
	cmd := exec.Command(lookPathOrSelf(spec.PnpmPath), spec.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd, true
}

// killGroup signals the whole process group led by pid.
func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// markerMatches reports whether a command line belongs to a gateway
// started with the given marker.
func markerMatches(cmdline, marker string) bool {
	lc := strings.ToLower(cmdline)
	return strings.Contains(lc, strings.ToLower(marker)) &&
		strings.Contains(lc, "gateway") &&
		strings.Contains(lc, " run")
}

// sweepMarked kills processes whose command line carries the launch marker.
func sweepMarked(ctx context.Context, marker string) (int, error) {
	return sweepByCmdline(ctx, func(cmdline string) bool {
		return markerMatches(cmdline, marker)
	})
}
