package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/yllada/claw-manager/common"
)

// ListenerFinder returns the pids listening on a TCP port.
type ListenerFinder func(ctx context.Context, port int) ([]int32, error)

// PidKiller kills a pid and its descendants.
type PidKiller func(ctx context.Context, pid int32) error

// PortReaper kills processes listening on a port.
type PortReaper struct {
	find ListenerFinder
	kill PidKiller
	self int32
}

// ReaperOption customizes a PortReaper.
type ReaperOption func(*PortReaper)

// WithListenerFinder replaces socket discovery.
func WithListenerFinder(f ListenerFinder) ReaperOption {
	return func(r *PortReaper) { r.find = f }
}

// WithPidKiller replaces the kill step.
func WithPidKiller(k PidKiller) ReaperOption {
	return func(r *PortReaper) { r.kill = k }
}

// NewPortReaper returns a reaper using the OS socket table.
func NewPortReaper(opts ...ReaperOption) *PortReaper {
	r := &PortReaper{
		find: FindListeners,
		kill: killProcessTree,
		self: int32(os.Getpid()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// KillListenersOnPort kills every process listening on port and returns how
// many were killed. No listeners is not an error. A failed kill does not
// stop the others; all failures are joined into the returned error.
func (r *PortReaper) KillListenersOnPort(ctx context.Context, port int) (int, error) {
	pids, err := r.find(ctx, port)
	if err != nil {
		return 0, fmt.Errorf("finding listeners on port %d: %w", port, err)
	}

	killed := 0
	var errs []error
	for _, pid := range pids {
		if pid == r.self {
			common.LogDebug("Skipping own pid %d listening on port %d", pid, port)
			continue
		}
		if err := r.kill(ctx, pid); err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", pid, err))
			continue
		}
		killed++
		common.LogInfo("Killed process %d on port %d", pid, port)
	}
	return killed, errors.Join(errs...)
}

// FindListeners lists LISTEN sockets on port. The socket table is read with
// gopsutil; when it fails or hides owners (pid 0 without privileges) the
// platform tool is asked instead.
func FindListeners(ctx context.Context, port int) ([]int32, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err == nil {
		pids, hidden := listenersFromConnections(conns, port)
		if !hidden {
			return pids, nil
		}
	} else {
		common.LogDebug("Socket table unavailable, falling back to %s: %v", fallbackTool(), err)
	}
	return findListenersWithTool(ctx, port)
}

// listenersFromConnections filters conns to deduplicated LISTEN owners on
// port. hidden is true when a matching socket had no visible owner.
func listenersFromConnections(conns []psnet.ConnectionStat, port int) (pids []int32, hidden bool) {
	seen := make(map[int32]bool)
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) {
			continue
		}
		if c.Pid <= 0 {
			hidden = true
			continue
		}
		if !seen[c.Pid] {
			seen[c.Pid] = true
			pids = append(pids, c.Pid)
		}
	}
	return pids, hidden
}

func fallbackTool() string {
	if runtime.GOOS == "windows" {
		return "netstat"
	}
	return "lsof"
}

func findListenersWithTool(ctx context.Context, port int) ([]int32, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "netstat", "-ano")
	} else {
		cmd = exec.CommandContext(ctx, "lsof", "-nP", "-tiTCP:"+strconv.Itoa(port), "-sTCP:LISTEN")
	}

	output, err := cmd.Output()
	if err != nil {
		// lsof exits 1 with no output when nothing matches.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(strings.TrimSpace(string(output))) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", fallbackTool(), err)
	}

	if runtime.GOOS == "windows" {
		return parseNetstatPIDs(string(output), port), nil
	}
	return parseLsofPIDs(string(output)), nil
}

// parseNetstatPIDs extracts pids from `netstat -ano` lines such as
// "TCP  0.0.0.0:18789  0.0.0.0:0  LISTENING  4242".
func parseNetstatPIDs(output string, port int) []int32 {
	var pids []int32
	seen := make(map[int32]bool)
	suffix := ":" + strconv.Itoa(port)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || !strings.EqualFold(fields[3], "LISTENING") {
			continue
		}
		if !strings.HasSuffix(fields[1], suffix) {
			continue
		}
		pid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || pid <= 0 || seen[int32(pid)] {
			continue
		}
		seen[int32(pid)] = true
		pids = append(pids, int32(pid))
	}
	return pids
}

// parseLsofPIDs extracts pids from `lsof -t` output, one per line.
func parseLsofPIDs(output string) []int32 {
	var pids []int32
	seen := make(map[int32]bool)
	for _, p := range strings.Split(strings.TrimSpace(output), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || pid <= 0 || seen[int32(pid)] {
			continue
		}
		seen[int32(pid)] = true
		pids = append(pids, int32(pid))
	}
	return pids
}

// sweepByCmdline kills every process, other than this one and its parent,
// whose command line satisfies match.
func sweepByCmdline(ctx context.Context, match func(string) bool) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	self := int32(os.Getpid())
	parent := int32(os.Getppid())

	killed := 0
	var errs []error
	for _, p := range procs {
		if p.Pid == self || p.Pid == parent {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" || !match(cmdline) {
			continue
		}
		if err := killProcessTree(ctx, p.Pid); err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", p.Pid, err))
			continue
		}
		killed++
		common.LogDebug("Killed marked process %d: %s", p.Pid, cmdline)
	}
	return killed, errors.Join(errs...)
}

// countTaskkillSuccess counts "SUCCESS" lines in taskkill output.
func countTaskkillSuccess(output string) int {
	n := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "SUCCESS") {
			n++
		}
	}
	return n
}
