// Package common provides shared constants, types, and utilities
// used across the Claw Manager application.
package common

import "errors"

// Sentinel errors for gateway operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Lifecycle errors.
	ErrLaunchFailed      = errors.New("gateway launch failed")
	ErrProbeTimeout      = errors.New("health probe timed out")
	ErrStartTimeout      = errors.New("gateway did not become healthy in time")
	ErrStopAmbiguous     = errors.New("gateway may still be running")
	ErrRestartInProgress = errors.New("restart already in progress")
	ErrStopInProgress    = errors.New("stop in progress")
	ErrCancelled         = errors.New("operation cancelled")

	// Endpoint errors.
	ErrEndpointUnavailable = errors.New("gateway endpoint unavailable")
	ErrInvalidPort         = errors.New("invalid gateway port")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrEncryption          = errors.New("encryption error")
	ErrDecryption          = errors.New("decryption error")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Agent errors.
	ErrEmptyMessage = errors.New("agent message is empty")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
