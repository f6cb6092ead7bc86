package core

import "errors"

// Error taxonomy. Configuration problems are fatal to Configure and are
// surfaced, never clamped. Range and state errors are rejected before any
// hardware write. Timeouts are recoverable: retry the wait or Abort.
var (
	// Configuration errors.
	ErrInvalidBand = errors.New("stepper: min frequency must be nonzero and <= max frequency")
	ErrBandTooWide = errors.New("stepper: band too wide for achievable resolution")
	ErrInvalidPin  = errors.New("stepper: direction pin not configured")

	// Move-time errors.
	ErrOutOfRange = errors.New("stepper: resolved frequency outside configured band")
	ErrSpeedWord  = errors.New("stepper: speed word exceeds configured width")

	// Operation not allowed in the current run state.
	ErrInvalidState = errors.New("stepper: operation not allowed in current run state")

	// Completion wait elapsed with the engine still emitting.
	ErrTimeout = errors.New("stepper: completion wait timed out")

	// Pulse-engine lifecycle misuse. Seeing this means the caller skipped
	// a transition, not that hardware misbehaved.
	ErrEngineState = errors.New("pulse engine: call not allowed in current engine state")
)
