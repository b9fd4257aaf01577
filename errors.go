package goalarm

import (
	"errors"
)

// Error kinds returned by the alarm engine. Refer to Set/Cancel docs
var (
	// ErrInvalidArgument nil callback or out-of-range delay
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoMemory reserved for API parity, the Go runtime has no
	// recoverable allocation failure
	ErrNoMemory = errors.New("out of memory")

	// ErrResourceExhausted demultiplexer slot or timerfd creation failed
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInProgress cancel targeted an alarm whose callback is running
	// on the calling thread
	ErrInProgress = errors.New("alarm callback in progress")

	// ErrNotFound cancel matched no pending alarm
	ErrNotFound = errors.New("alarm not found")

	// ErrPollerClosed operation on a poller after Shutdown
	ErrPollerClosed = errors.New("poller closed")

	// ErrNotInitialized package-level Set/Cancel before Init
	ErrNotInitialized = errors.New("alarm engine not initialized")
)
