package core

import "time"

// EngineTraits describes the fixed properties of a pulse engine that the
// planner needs before it can pick a clock for a band.
type EngineTraits struct {
	// SourceClockHz is the undivided clock feeding the engine. The planned
	// engine clock never exceeds it.
	SourceClockHz uint32

	// DelayBits is the usable width of the per-pulse delay value.
	DelayBits uint8

	// LosslessMaxHz is the highest pulse frequency at which the engine's
	// edge counter is known to observe every pulse. Above it the count can
	// trail the emitted total by a small margin; that shortfall is a
	// property of the hardware, and CompletedCount reports what was
	// observed rather than papering over it.
	LosslessMaxHz uint32
}

// PulseEngine is the hardware abstraction the driver runs on: something that
// can emit a preloaded number of pulses at a fixed cadence and independently
// count the edges it produced.
//
// The engine moves through Idle, Loaded, Emitting and Halted. SetClock is
// only legal while Idle, Load moves Idle to Loaded, Start moves Loaded to
// Emitting, and the engine halts itself after the last pulse. Calls made in
// the wrong state fail with ErrEngineState. Each pulse costs a fixed number
// of engine cycles plus two per loaded delay unit, which is what lets the
// planner and estimator price a run up front.
type PulseEngine interface {
	// Traits reports the engine's fixed properties.
	Traits() EngineTraits

	// SetClock sets the engine clock for subsequent runs. Idle only.
	SetClock(engineHz uint32) error

	// Load arms the engine with the per-pulse delay and the number of
	// pulses to emit. A zero step count is a legal no-op run that halts
	// immediately after Start.
	Load(delay, steps uint32) error

	// Start begins emitting. It returns without waiting for the run.
	Start() error

	// AwaitCompletion blocks until the engine has halted or the timeout
	// elapses. A timeout of zero or less checks once without blocking.
	// Returns nil if already Halted, ErrTimeout on expiry, ErrEngineState
	// if there is no run to wait for.
	AwaitCompletion(timeout time.Duration) error

	// CompletedCount returns the number of pulse edges the counter
	// observed during the most recent run. Valid after the engine halts
	// or is reset; the counter, not the emitter, is the authority.
	CompletedCount() uint32

	// Reset stops any run in progress, latches the edge count observed so
	// far, and returns the engine to Idle. Safe in any state.
	Reset()
}
