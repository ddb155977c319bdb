// Package common provides shared constants, types, utilities, and interfaces
// used throughout the Claw Manager application.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: gateway defaults, probe and poll timings, file names
//   - Errors: sentinel errors for the gateway lifecycle, checked with errors.Is
//   - Interfaces: abstractions for secret storage, notifications, and logging
//   - Logger: leveled logging to stdout and a rotating file
//   - Utils: config directory helpers and small string utilities
//
// # Usage
//
//	import "github.com/yllada/claw-manager/common"
//
//	// Use constants
//	timeout := common.ProbeTimeout
//
//	// Use logger
//	common.LogInfo("Gateway listening on port %d", port)
//
//	// Check errors
//	if errors.Is(err, common.ErrStopAmbiguous) {
//	    // Ask the user to close the terminal manually
//	}
package common
