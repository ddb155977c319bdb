// Package gateway supervises the external OpenClaw gateway process.
//
// The package is organized around a single Supervisor that owns the
// lifecycle state of the gateway and a handful of collaborators:
//
//   - HTTPProber: one bounded GET against {BaseURL}/health
//   - ExecLauncher: starts the gateway detached and returns a ManagedProcess
//   - PortReaper: kills whatever is listening on the gateway port
//   - ProcessTerminator: ordered strategies used by Stop (owned handle,
//     port lookup, launch-marker sweep)
//
// # State Machine
//
//	Unknown -> Online/Offline        (Status probe)
//	Offline/Unknown/Error -> Starting -> Online | Error
//	Online/Starting/Error -> Stopping -> Offline | Error
//
// Start and Stop calls are coalesced: concurrent callers share one
// in-flight operation. A Restart issued while another is outstanding is
// dropped with ErrRestartInProgress.
//
// # Thread Safety
//
// All Supervisor methods are safe for concurrent use. They block until
// the operation finishes, so UI callers run them from a goroutine.
package gateway
