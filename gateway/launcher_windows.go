//go:build windows

package gateway

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

const createNewConsole = 0x00000010

// platformCommand hosts the gateway in a titled cmd.exe console kept open
// with /K, so that startup errors stay visible to the user.
func platformCommand(spec LaunchSpec) (*exec.Cmd, bool) {
	line := fmt.Sprintf(`/K title %s-gateway && cd /d "%s" && "%s" %s`,
		spec.Marker, spec.WorkDir, spec.PnpmPath, joinArgs(spec.Args))
	cmd := exec.Command("cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       "cmd.exe " + line,
		CreationFlags: createNewConsole | syscall.CREATE_NEW_PROCESS_GROUP,
	}
	return cmd, false
}

func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = syscall.EscapeArg(a)
	}
	return strings.Join(quoted, " ")
}

// killGroup falls back to taskkill's own tree walk.
func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

// sweepMarked kills console windows titled with the launch marker.
func sweepMarked(ctx context.Context, marker string) (int, error) {
	cmd := exec.CommandContext(ctx, "taskkill", "/F", "/FI", "WINDOWTITLE eq "+marker+"*")
	out, err := cmd.CombinedOutput()
	if err != nil {
		// taskkill exits non-zero when nothing matched.
		if _, ok := err.(*exec.ExitError); ok {
			return 0, nil
		}
		return 0, err
	}
	return countTaskkillSuccess(string(out)), nil
}
