// Package core drives a stepper motor open loop: pulse generation, edge
// counting and auto-stop live in a hardware pulse engine, and the driver's
// job is to plan the engine clock for a frequency band, translate speed
// command words into armed runs, and account for the steps the engine
// reports afterwards. It is portable; hardware engines live under targets.
package core

import "time"

// RunState is the driver's lifecycle state.
type RunState uint8

const (
	StateIdle      RunState = iota // configured or not, no move issued
	StateRunning                   // a move is in flight
	StateCompleted                 // last move finished or was aborted
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Config declares the operating envelope of the motor. The band is a hard
// contract: moves outside it are rejected, never clamped.
type Config struct {
	MinFreq uint32 // slowest commandable step frequency, Hz
	MaxFreq uint32 // fastest commandable step frequency, Hz

	// DirPin is driven high for forward moves and low for reverse before
	// the pulse train starts.
	DirPin PinOut

	// Microsteps records the external driver's microstep setting. The
	// pulse engine does not act on it; it is carried for callers that
	// convert between steps and shaft angle.
	Microsteps uint16

	// SpeedBits is the width of speed command words. Zero selects
	// DefaultSpeedBits.
	SpeedBits uint8
}

// StepperDriver runs one motor on one pulse engine.
type StepperDriver struct {
	engine PulseEngine

	cfg        Config
	plan       ClockPlan
	configured bool

	state     RunState
	dir       Direction
	requested uint32
	completed uint32
}

// New returns an unconfigured driver for the given engine.
func New(engine PulseEngine) *StepperDriver {
	return &StepperDriver{engine: engine}
}

// Configure plans the engine clock for the band and applies it. It can be
// called again between moves to change the band, but never while a move is
// running. All validation happens before the engine is touched.
func (d *StepperDriver) Configure(cfg Config) error {
	if d.state == StateRunning {
		return ErrInvalidState
	}
	if cfg.DirPin == nil {
		return ErrInvalidPin
	}
	if cfg.SpeedBits == 0 {
		cfg.SpeedBits = DefaultSpeedBits
	}
	plan, err := PlanClock(cfg.MinFreq, cfg.MaxFreq, d.engine.Traits())
	if err != nil {
		return err
	}
	if d.state == StateCompleted {
		d.engine.Reset()
		d.state = StateIdle
	}
	if err := d.engine.SetClock(plan.EngineClockHz); err != nil {
		return err
	}
	d.cfg = cfg
	d.plan = plan
	d.configured = true
	debugPrint("stepper: configured, engine clock " + utoa(plan.EngineClockHz) + " Hz")
	return nil
}

// Move decodes the speed word, arms the engine with the quantized run and
// starts it. It returns the expected duration of the move so the caller can
// schedule around it; the pulse train is already underway when Move returns.
// The word and step count are validated in full before any hardware state
// changes, so a rejected move leaves the previous state intact.
func (d *StepperDriver) Move(speed, steps uint32) (time.Duration, error) {
	if !d.configured || d.state == StateRunning {
		return 0, ErrInvalidState
	}
	dir, freq, err := DecodeSpeed(speed, d.cfg.SpeedBits)
	if err != nil {
		return 0, err
	}
	delay, achievable, err := d.plan.Resolve(freq)
	if err != nil {
		return 0, err
	}
	if d.state == StateCompleted {
		d.engine.Reset()
		d.state = StateIdle
	}
	d.cfg.DirPin.Set(dir == DirForward)
	eta := Estimate(steps, achievable)
	if err := d.engine.Load(delay, steps); err != nil {
		return 0, err
	}
	if err := d.engine.Start(); err != nil {
		d.engine.Reset()
		return 0, err
	}
	d.state = StateRunning
	d.dir = dir
	d.requested = steps
	d.completed = 0
	debugPrint("stepper: " + utoa(steps) + " steps " + dir.String() + " at " + utoa(freq) + " Hz")
	return eta, nil
}

// WaitForCompletion blocks until the running move ends or the timeout
// elapses, then latches the engine's edge count. A timeout of zero or less
// checks once without blocking. On ErrTimeout the move is still running and
// the call may be repeated.
func (d *StepperDriver) WaitForCompletion(timeout time.Duration) error {
	if d.state != StateRunning {
		return ErrInvalidState
	}
	if err := d.engine.AwaitCompletion(timeout); err != nil {
		return err
	}
	d.completed = d.engine.CompletedCount()
	d.state = StateCompleted
	return nil
}

// Abort stops a running move immediately and latches however many steps the
// engine counted before the stop. Aborting when nothing is running is a
// no-op.
func (d *StepperDriver) Abort() {
	if d.state != StateRunning {
		return
	}
	d.engine.Reset()
	d.completed = d.engine.CompletedCount()
	d.state = StateCompleted
	debugPrint("stepper: aborted after " + utoa(d.completed) + " steps")
}

// CompletedSteps reports the edge count of the last finished move. The
// value comes from the engine's independent counter, so at frequencies past
// the engine's lossless limit it can trail the requested count slightly;
// that gap reflects what the counter observed, not a driver fault.
func (d *StepperDriver) CompletedSteps() (uint32, error) {
	if d.state != StateCompleted {
		return 0, ErrInvalidState
	}
	return d.completed, nil
}

// State reports the driver's lifecycle state.
func (d *StepperDriver) State() RunState { return d.state }

// RequestedSteps reports the step count of the most recent move.
func (d *StepperDriver) RequestedSteps() uint32 { return d.requested }

// Direction reports the direction of the most recent move.
func (d *StepperDriver) Direction() Direction { return d.dir }

// Plan returns the active clock plan. Zero value until Configure succeeds.
func (d *StepperDriver) Plan() ClockPlan { return d.plan }
