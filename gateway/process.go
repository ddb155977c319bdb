package gateway

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/yllada/claw-manager/common"
)

// Handle is a gateway process launched by this session.
type Handle interface {
	Pid() int
	Alive() bool
	KillTree(ctx context.Context) error
}

// ManagedProcess is the handle returned by ExecLauncher.
type ManagedProcess struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	logFile   *os.File

	done    chan struct{}
	mu      sync.Mutex
	exitErr error
}

func newManagedProcess(cmd *exec.Cmd, logFile *os.File) *ManagedProcess {
	p := &ManagedProcess{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		logFile:   logFile,
		done:      make(chan struct{}),
	}
	go p.wait()
	return p
}

func (p *ManagedProcess) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	if p.logFile != nil {
		p.logFile.Close()
	}
	close(p.done)
	common.LogDebug("Gateway process %d exited: %v", p.pid, err)
}

// Pid returns the child's process id.
func (p *ManagedProcess) Pid() int {
	return p.pid
}

// StartedAt returns when the child was spawned.
func (p *ManagedProcess) StartedAt() time.Time {
	return p.startedAt
}

// Alive reports whether the child has not been reaped yet.
func (p *ManagedProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed once the child exits.
func (p *ManagedProcess) Done() <-chan struct{} {
	return p.done
}

// ExitErr is the child's wait error, valid after Done.
func (p *ManagedProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// KillTree kills the child and all of its descendants.
func (p *ManagedProcess) KillTree(ctx context.Context) error {
	if !p.Alive() {
		return nil
	}
	err := killProcessTree(ctx, int32(p.pid))
	killGroup(p.pid)

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}
	return err
}

// killProcessTree kills pid and every descendant. The tree is collected
// before anything is killed so that orphans are not reparented out of reach.
func killProcessTree(ctx context.Context, pid int32) error {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if isProcessGone(err) {
			return nil
		}
		return err
	}

	tree := []*process.Process{root}
	for i := 0; i < len(tree); i++ {
		children, err := tree[i].ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		tree = append(tree, children...)
	}

	var errs []error
	for _, proc := range tree {
		if err := proc.KillWithContext(ctx); err != nil && !isProcessGone(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isProcessGone(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, syscall.ESRCH)
}
