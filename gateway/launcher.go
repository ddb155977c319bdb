package gateway

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/yllada/claw-manager/common"
)

// LaunchSpec describes how to start the gateway.
type LaunchSpec struct {
	// PnpmPath is the pnpm executable.
	PnpmPath string
	// WorkDir is the OpenClaw checkout the gateway runs from.
	WorkDir string
	// Args follow PnpmPath. Empty means GatewayArgs().
	Args []string
	// LogPath receives the child's output where the platform captures it.
	LogPath string
	// Marker tags the hosting shell so that WindowTitleMatch can find it.
	Marker string
}

// GatewayArgs are the pnpm arguments that run the gateway in the foreground.
func GatewayArgs() []string {
	return []string{"openclaw", "gateway", "run", "--verbose"}
}

// CommandLine renders the spec for log lines.
func (s LaunchSpec) CommandLine() string {
	args := s.Args
	if len(args) == 0 {
		args = GatewayArgs()
	}
	return s.PnpmPath + " " + strings.Join(args, " ")
}

func (s LaunchSpec) withDefaults() LaunchSpec {
	if s.PnpmPath == "" {
		s.PnpmPath = "pnpm"
	}
	if len(s.Args) == 0 {
		s.Args = GatewayArgs()
	}
	if s.Marker == "" {
		s.Marker = common.LaunchMarker
	}
	if s.LogPath == "" {
		s.LogPath = filepath.Join(common.GetLogDir(), common.GatewayLogFileName)
	}
	return s
}

// Launcher starts the gateway process.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}

// ExecLauncher starts the gateway as a detached child of this process.
type ExecLauncher struct{}

// NewExecLauncher returns the default launcher.
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts the gateway. The child is put in its own process group
// (a new console on Windows) so it outlives this process, and it is not
// bound to ctx.
func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec = spec.withDefaults()

	if spec.WorkDir != "" {
		info, err := os.Stat(spec.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("%w: working directory: %v", common.ErrLaunchFailed, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", common.ErrLaunchFailed, spec.WorkDir)
		}
	}

	cmd, captures := platformCommand(spec)
	cmd.Dir = spec.WorkDir

	var logFile *os.File
	if captures {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0700); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrLaunchFailed, err)
		}
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("%w: opening gateway log: %v", common.ErrLaunchFailed, err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	common.LogDebug("Launching gateway: %s (cwd %s)", spec.CommandLine(), spec.WorkDir)

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("%w: %v", common.ErrLaunchFailed, err)
	}

	return newManagedProcess(cmd, logFile), nil
}

// lookPathOrSelf resolves name on PATH, returning it unchanged when it
// cannot be found so that exec reports the error.
func lookPathOrSelf(name string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}
