package core

import "math"

// Frequency planner: maps a declared stepper frequency band onto a single
// pulse-engine clock, then maps per-move frequencies onto integer delay
// values for that clock. Quantization is lossy; everything downstream must
// use the achievable frequency Resolve returns, not the requested one.

// Per-pulse cycle cost of the pulse micro-program: every pulse burns
// pulseFixedCycles in the engine regardless of speed, plus pulseDelayCycles
// for each unit of the loaded delay value. Both implementations of
// PulseEngine honor these numbers, so the planner and estimator can price a
// run before it starts.
const (
	pulseFixedCycles = 37
	pulseDelayCycles = 2
)

// Engine clock selection limits. The 5 MHz ceiling keeps the slow end of a
// typical NEMA17 band (tens of Hz) inside a 16-bit delay register.
const (
	maxEngineClockHz = 5_000_000
	minEngineClockHz = 2_000
)

// ClockPlan is the result of planning a frequency band: one engine clock
// that serves the whole band. Computed once at configuration time.
type ClockPlan struct {
	MinFreq uint32 // slowest allowed stepper frequency, Hz
	MaxFreq uint32 // fastest allowed stepper frequency, Hz

	// EngineClockHz is the pulse-engine state machine clock after
	// division from the source clock.
	EngineClockHz uint32

	// DelayBits is the width of the engine's per-pulse delay register,
	// copied from the engine traits the plan was validated against.
	DelayBits uint8

	minDelay uint32 // delay value at MaxFreq
	maxDelay uint32 // delay value at MinFreq
}

// PlanClock chooses an engine clock for the band [minFreq, maxFreq] and
// checks that one clock can represent both edges: the slowest frequency
// must fit the delay register and the fastest must still cost at least one
// delay unit. A band that fails either check is too wide for the hardware's
// resolution and configuration fails; nothing is clamped silently.
func PlanClock(minFreq, maxFreq uint32, traits EngineTraits) (ClockPlan, error) {
	if minFreq == 0 || maxFreq == 0 || minFreq > maxFreq {
		return ClockPlan{}, ErrInvalidBand
	}
	if traits.SourceClockHz == 0 || traits.DelayBits == 0 || traits.DelayBits > 31 {
		return ClockPlan{}, ErrInvalidBand
	}

	hz := uint64(2500) * uint64(minFreq)
	if alt := uint64(1000) * uint64(maxFreq); alt > hz {
		hz = alt
	}
	if hz > maxEngineClockHz {
		hz = maxEngineClockHz
	}
	if hz < minEngineClockHz {
		hz = minEngineClockHz
	}
	if hz > uint64(traits.SourceClockHz) {
		hz = uint64(traits.SourceClockHz)
	}

	plan := ClockPlan{
		MinFreq:       minFreq,
		MaxFreq:       maxFreq,
		EngineClockHz: uint32(hz),
		DelayBits:     traits.DelayBits,
	}

	maxDelay, ok := delayFor(plan.EngineClockHz, minFreq)
	if !ok || maxDelay > uint32(1)<<traits.DelayBits-1 {
		return ClockPlan{}, ErrBandTooWide
	}
	minDelay, ok := delayFor(plan.EngineClockHz, maxFreq)
	if !ok {
		return ClockPlan{}, ErrBandTooWide
	}
	plan.minDelay = minDelay
	plan.maxDelay = maxDelay
	return plan, nil
}

// Resolve maps a requested frequency to the nearest representable delay
// value and reports the frequency that delay actually produces. The
// rounding error is at most one engine cycle per pulse period, which within
// a planned band keeps the achievable frequency inside 0.2% of the request.
func (p ClockPlan) Resolve(freqHz uint32) (delay uint32, achievableHz float64, err error) {
	if freqHz < p.MinFreq || freqHz > p.MaxFreq {
		return 0, 0, ErrOutOfRange
	}
	delay, ok := delayFor(p.EngineClockHz, freqHz)
	if !ok {
		return 0, 0, ErrOutOfRange
	}
	achievableHz = float64(p.EngineClockHz) / float64(pulseDelayCycles*delay+pulseFixedCycles)
	return delay, achievableHz, nil
}

// DelayRange returns the delay values at the band edges, mostly of interest
// to diagnostics.
func (p ClockPlan) DelayRange() (min, max uint32) {
	return p.minDelay, p.maxDelay
}

// delayFor computes the delay value whose pulse period best matches 1/freq
// at the given engine clock. Reports false when even a delay of one unit
// would overshoot the requested rate.
func delayFor(engineHz, freqHz uint32) (uint32, bool) {
	cycles := float64(engineHz) / float64(freqHz)
	d := math.Round((cycles - pulseFixedCycles) / pulseDelayCycles)
	if d < 1 {
		return 0, false
	}
	return uint32(d), true
}
