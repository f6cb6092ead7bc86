package core

import (
	"sync"
	"time"
)

type simState uint8

const (
	simIdle simState = iota
	simLoaded
	simEmitting
	simHalted
)

// SimEngine is a host-side PulseEngine that honors the same state machine
// and cycle contract as the hardware, run against the wall clock. It exists
// so the driver can be exercised in ordinary tests; TimeScale compresses
// runs so a multi-second move finishes in microseconds.
type SimEngine struct {
	SourceClockHz uint32
	DelayBits     uint8
	LosslessMaxHz uint32

	// TimeScale divides real run durations. 1 means real time.
	TimeScale float64

	// LossyAbove, when nonzero, makes the counter drop one edge on runs
	// faster than this frequency, mimicking the counting shortfall real
	// hardware shows near its speed limit.
	LossyAbove uint32

	mu      sync.Mutex
	state   simState
	clockHz uint32
	delay   uint32
	steps   uint32
	count   uint32
	done    chan struct{}
	timer   *time.Timer
	started time.Time
	runFreq float64
}

// NewSimEngine returns a simulator with traits resembling an RP2040 part.
func NewSimEngine() *SimEngine {
	return &SimEngine{
		SourceClockHz: 125_000_000,
		DelayBits:     16,
		LosslessMaxHz: 5000,
		TimeScale:     1,
	}
}

func (e *SimEngine) Traits() EngineTraits {
	return EngineTraits{
		SourceClockHz: e.SourceClockHz,
		DelayBits:     e.DelayBits,
		LosslessMaxHz: e.LosslessMaxHz,
	}
}

func (e *SimEngine) SetClock(engineHz uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != simIdle || engineHz == 0 {
		return ErrEngineState
	}
	e.clockHz = engineHz
	return nil
}

func (e *SimEngine) Load(delay, steps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != simIdle || e.clockHz == 0 {
		return ErrEngineState
	}
	e.delay = delay
	e.steps = steps
	e.count = 0
	e.done = make(chan struct{})
	e.state = simLoaded
	return nil
}

func (e *SimEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != simLoaded {
		return ErrEngineState
	}
	e.runFreq = float64(e.clockHz) / float64(pulseDelayCycles*e.delay+pulseFixedCycles)
	scale := e.TimeScale
	if scale <= 0 {
		scale = 1
	}
	d := time.Duration(float64(e.steps) / e.runFreq / scale * float64(time.Second))
	e.started = time.Now()
	e.state = simEmitting
	done := e.done
	e.timer = time.AfterFunc(d, func() { e.halt(done) })
	return nil
}

// halt finishes the run started with the given done channel. The channel
// guard keeps a stale timer from a run that was reset from touching a later
// run's state.
func (e *SimEngine) halt(done chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != simEmitting || e.done != done {
		return
	}
	e.count = e.steps
	if e.LossyAbove != 0 && e.runFreq > float64(e.LossyAbove) && e.count > 0 {
		e.count--
	}
	e.state = simHalted
	close(done)
}

func (e *SimEngine) AwaitCompletion(timeout time.Duration) error {
	e.mu.Lock()
	switch e.state {
	case simHalted:
		e.mu.Unlock()
		return nil
	case simEmitting:
		done := e.done
		e.mu.Unlock()
		if timeout <= 0 {
			select {
			case <-done:
				return nil
			default:
				return ErrTimeout
			}
		}
		select {
		case <-done:
			return nil
		case <-time.After(timeout):
			return ErrTimeout
		}
	default:
		e.mu.Unlock()
		return ErrEngineState
	}
}

func (e *SimEngine) CompletedCount() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func (e *SimEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == simEmitting {
		e.timer.Stop()
		scale := e.TimeScale
		if scale <= 0 {
			scale = 1
		}
		emitted := uint32(e.runFreq * time.Since(e.started).Seconds() * scale)
		if emitted > e.steps {
			emitted = e.steps
		}
		e.count = emitted
	}
	e.state = simIdle
}
