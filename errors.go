package chrono

import "errors"

var (
	// Lifecycle errors.
	ErrAlreadyStarted   = errors.New("chrono: scheduler already started")
	ErrSchedulerStopped = errors.New("chrono: scheduler stopped")

	// Persistence errors.
	ErrNoStore = errors.New("chrono: no store configured")

	// ErrUnknownHandler is returned by Restore when a persisted job names
	// a handler that was never registered.
	ErrUnknownHandler = errors.New("chrono: no handler registered")
)
