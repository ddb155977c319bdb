package gateway

import (
	"context"

	"github.com/yllada/claw-manager/common"
)

// TerminationTarget is what a Stop is trying to take down.
type TerminationTarget struct {
	// Handle is the process this session launched, or nil.
	Handle   Handle
	Endpoint Endpoint
	Marker   string
}

// ProcessTerminator is one strategy for killing the gateway. Stop runs every
// terminator in order regardless of how the previous one did.
type ProcessTerminator interface {
	Name() string
	// Terminate returns how many processes it killed.
	Terminate(ctx context.Context, target TerminationTarget) (int, error)
}

// OwnedHandle kills the process tree this session launched.
type OwnedHandle struct{}

func (OwnedHandle) Name() string { return "owned-handle" }

func (OwnedHandle) Terminate(ctx context.Context, target TerminationTarget) (int, error) {
	if target.Handle == nil || !target.Handle.Alive() {
		return 0, nil
	}
	if err := target.Handle.KillTree(ctx); err != nil {
		return 0, err
	}
	common.LogInfo("Killed gateway process tree %d", target.Handle.Pid())
	return 1, nil
}

// PortKiller kills listeners on a port.
type PortKiller interface {
	KillListenersOnPort(ctx context.Context, port int) (int, error)
}

// PortLookup kills whatever listens on the endpoint port, which covers a
// gateway started outside this session.
type PortLookup struct {
	Reaper PortKiller
}

func (PortLookup) Name() string { return "port-lookup" }

func (t PortLookup) Terminate(ctx context.Context, target TerminationTarget) (int, error) {
	reaper := t.Reaper
	if reaper == nil {
		reaper = NewPortReaper()
	}
	return reaper.KillListenersOnPort(ctx, target.Endpoint.Port)
}

// WindowTitleMatch kills helper shells carrying the launch marker: consoles
// titled with it on Windows, matching command lines elsewhere.
type WindowTitleMatch struct {
	Sweep func(ctx context.Context, marker string) (int, error)
}

func (WindowTitleMatch) Name() string { return "window-title" }

func (t WindowTitleMatch) Terminate(ctx context.Context, target TerminationTarget) (int, error) {
	marker := target.Marker
	if marker == "" {
		marker = common.LaunchMarker
	}
	sweep := t.Sweep
	if sweep == nil {
		sweep = sweepMarked
	}
	return sweep(ctx, marker)
}

// DefaultTerminators returns the standard Stop sequence.
func DefaultTerminators(reaper PortKiller) []ProcessTerminator {
	return []ProcessTerminator{
		OwnedHandle{},
		PortLookup{Reaper: reaper},
		WindowTitleMatch{},
	}
}
