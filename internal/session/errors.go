package session

import "errors"

// Sentinel errors for session operations. Check with errors.Is().
var (
	// ErrSessionNotFound indicates the session exists neither in memory
	// nor in the durable store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition indicates a lifecycle transition the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrSessionBusy indicates the session is mid-archive or mid-resume
	// and cannot serve the operation right now.
	ErrSessionBusy = errors.New("session busy")

	// ErrNoDurableStore indicates an archive or resume was requested
	// but the manager runs without a durable backend.
	ErrNoDurableStore = errors.New("no durable store configured")
)
