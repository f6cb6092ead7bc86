//go:build rp2040 || rp2350

// Package pio backs the stepper core with an RP2 PIO block. Two state
// machines are claimed from one block: a generator that emits the pulse
// train and halts itself, and a counter that watches the step pin and
// counts the edges that actually appeared. The CPU only arms them and
// reads the results.
package pio

import (
	"machine"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"piostep/core"
)

// Completion is signalled on PIO IRQ flag 0.
const completionIRQ = 0

// Generator program. Parameters arrive over the TX FIFO: first the
// inter-pulse delay, then the pulse count minus one. Each pulse costs 37
// engine cycles plus 2 per delay unit; the planner and the delay fields
// below must agree on those numbers.
//
//	 0: pull block          ; delay
//	 1: out y, 32
//	 2: mov isr, y          ; park delay in ISR for reload
//	 3: pull block          ; pulses-1
//	 4: out x, 32
//	 5: set pins, 1 [13]    ; pulse high, 14 cycles
//	 6: set pins, 0 [12]    ; pulse low, 13 cycles
//	 7: mov y, isr          ; 1 cycle
//	 8: jmp y--, 8 [1]      ; 2 cycles per pass, runs delay+1 times
//	 9: jmp x--, 5 [6]      ; 7 cycles
//	10: irq nowait 0        ; run complete
//	11: jmp 11              ; park
func generatorProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		rp2pio.EncodeOut(rp2pio.SrcDestY, 32),
		rp2pio.EncodeMov(rp2pio.SrcDestISR, rp2pio.SrcDestY),
		asm.Pull(false, true).Encode(),
		rp2pio.EncodeOut(rp2pio.SrcDestX, 32),
		asm.Set(rp2pio.SetDestPins, 1).Delay(13).Encode(),
		asm.Set(rp2pio.SetDestPins, 0).Delay(12).Encode(),
		rp2pio.EncodeMov(rp2pio.SrcDestY, rp2pio.SrcDestISR),
		asm.Jmp(8, rp2pio.JmpYNZeroDec).Delay(1).Encode(),
		asm.Jmp(5, rp2pio.JmpXNZeroDec).Delay(6).Encode(),
		asm.IRQSet(false, completionIRQ).Encode(),
		asm.Jmp(11, rp2pio.JmpAlways).Encode(),
	}
}

// Counter program. X arrives as all-ones over the TX FIFO and is
// decremented once per rising edge on the step pin; the emitted count is
// the bitwise complement of X after the machine is halted. The counter
// runs undivided so it keeps up with any generator clock.
//
//	0: pull block
//	1: out x, 32
//	2: wait 1 pin 0
//	3: jmp x--, 4          ; decrement, fall through either way
//	4: wait 0 pin 0
//	5: jmp 2
func counterProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		rp2pio.EncodeOut(rp2pio.SrcDestX, 32),
		asm.WaitPin(true, 0).Encode(),
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(),
		asm.WaitPin(false, 0).Encode(),
		asm.Jmp(2, rp2pio.JmpAlways).Encode(),
	}
}

type engineState uint8

const (
	engIdle engineState = iota
	engLoaded
	engEmitting
	engHalted
)

// Engine implements core.PulseEngine on one PIO block.
type Engine struct {
	pio     *rp2pio.PIO
	gen     rp2pio.StateMachine
	counter rp2pio.StateMachine
	stepPin machine.Pin

	genOffset     uint8
	counterOffset uint8

	clockHz uint32
	state   engineState
	zeroRun bool
	count   uint32
}

// NewEngine claims two state machines on the given PIO block and loads both
// programs. The step pin is taken over by the generator.
func NewEngine(p *rp2pio.PIO, stepPin machine.Pin) (*Engine, error) {
	gen, err := p.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	counter, err := p.ClaimStateMachine()
	if err != nil {
		gen.Unclaim()
		return nil, err
	}

	genProg := generatorProgram()
	genOffset, err := p.AddProgram(genProg, -1)
	if err != nil {
		gen.Unclaim()
		counter.Unclaim()
		return nil, err
	}
	cntProg := counterProgram()
	cntOffset, err := p.AddProgram(cntProg, -1)
	if err != nil {
		gen.Unclaim()
		counter.Unclaim()
		return nil, err
	}

	stepPin.Configure(machine.PinConfig{Mode: p.PinMode()})

	genCfg := rp2pio.DefaultStateMachineConfig()
	genCfg.SetSetPins(stepPin, 1)
	genCfg.SetOutShift(true, false, 32)
	genCfg.SetWrap(genOffset, genOffset+uint8(len(genProg))-1)
	gen.Init(genOffset, genCfg)
	gen.SetPindirsConsecutive(stepPin, 1, true)
	gen.SetPinsConsecutive(stepPin, 1, false)

	cntCfg := rp2pio.DefaultStateMachineConfig()
	cntCfg.SetInPins(stepPin)
	// Autopush at 32 so a halted-machine register read lands in the RX FIFO.
	cntCfg.SetInShift(false, true, 32)
	cntCfg.SetWrap(cntOffset, cntOffset+uint8(len(cntProg))-1)
	counter.Init(cntOffset, cntCfg)

	return &Engine{
		pio:           p,
		gen:           gen,
		counter:       counter,
		stepPin:       stepPin,
		genOffset:     genOffset,
		counterOffset: cntOffset,
	}, nil
}

func (e *Engine) Traits() core.EngineTraits {
	cpu := machine.CPUFrequency()
	lossless := uint32(5000)
	if cpu >= 140_000_000 {
		lossless = 15000
	}
	return core.EngineTraits{
		SourceClockHz: cpu,
		DelayBits:     16,
		LosslessMaxHz: lossless,
	}
}

// SetClock divides the generator down to the planned engine clock. The
// counter keeps the undivided clock.
func (e *Engine) SetClock(engineHz uint32) error {
	if e.state != engIdle {
		return core.ErrEngineState
	}
	whole, frac, err := rp2pio.ClkDivFromFrequency(engineHz, machine.CPUFrequency())
	if err != nil {
		return err
	}
	e.gen.SetClkDiv(whole, frac)
	e.clockHz = engineHz
	return nil
}

// Load arms both state machines for a run. The counter starts watching
// immediately; the generator stays disabled until Start.
func (e *Engine) Load(delay, steps uint32) error {
	if e.state != engIdle || e.clockHz == 0 {
		return core.ErrEngineState
	}
	e.count = 0
	e.zeroRun = steps == 0
	if e.zeroRun {
		e.state = engLoaded
		return nil
	}

	e.counter.SetEnabled(false)
	e.counter.ClearFIFOs()
	e.counter.Restart()
	e.counter.Exec(rp2pio.EncodeJmp(e.counterOffset, rp2pio.JmpAlways))
	e.counter.TxPut(^uint32(0))
	e.counter.SetEnabled(true)

	e.gen.SetEnabled(false)
	e.gen.ClearFIFOs()
	e.gen.Restart()
	e.gen.ClkDivRestart()
	e.gen.Exec(rp2pio.EncodeJmp(e.genOffset, rp2pio.JmpAlways))
	e.gen.TxPut(delay)
	e.gen.TxPut(steps - 1)

	e.state = engLoaded
	return nil
}

// Start enables the generator and returns immediately; the pulse train is
// in flight when it returns.
func (e *Engine) Start() error {
	if e.state != engLoaded {
		return core.ErrEngineState
	}
	if e.zeroRun {
		e.state = engHalted
		return nil
	}
	e.pio.ClearIRQ(1 << completionIRQ)
	e.gen.SetEnabled(true)
	e.state = engEmitting
	return nil
}

// AwaitCompletion polls the completion IRQ flag until the run ends or the
// timeout elapses. A timeout of zero or less checks exactly once.
func (e *Engine) AwaitCompletion(timeout time.Duration) error {
	switch e.state {
	case engHalted:
		return nil
	case engEmitting:
	default:
		return core.ErrEngineState
	}
	deadline := time.Now().Add(timeout)
	for {
		if e.pio.GetIRQ()&(1<<completionIRQ) != 0 {
			e.halt()
			return nil
		}
		if timeout <= 0 || !time.Now().Before(deadline) {
			return core.ErrTimeout
		}
		time.Sleep(200 * time.Microsecond)
	}
}

func (e *Engine) CompletedCount() uint32 {
	return e.count
}

// Reset stops whatever is running, latches the edge count observed so far,
// forces the step pin low and returns the engine to idle. The loaded clock
// divisor survives.
func (e *Engine) Reset() {
	if e.state == engEmitting {
		e.count = e.readEdgeCount()
	}

	e.gen.SetEnabled(false)
	e.gen.ClearFIFOs()
	e.gen.Restart()
	e.gen.ClkDivRestart()
	e.gen.Exec(rp2pio.EncodeJmp(e.genOffset, rp2pio.JmpAlways))
	e.gen.SetPinsConsecutive(e.stepPin, 1, false)

	e.counter.SetEnabled(false)
	e.counter.ClearFIFOs()
	e.counter.Restart()

	e.pio.ClearIRQ(1 << completionIRQ)
	e.zeroRun = false
	e.state = engIdle
}

// halt finishes a run that signalled completion: stop the generator, then
// read the count out of the halted counter.
func (e *Engine) halt() {
	e.gen.SetEnabled(false)
	e.count = e.readEdgeCount()
	e.pio.ClearIRQ(1 << completionIRQ)
	e.state = engHalted
}

// readEdgeCount halts the counter and recovers the number of rising edges
// it saw. The counter decrements X from all-ones, so the count is the
// complement of the register.
func (e *Engine) readEdgeCount() uint32 {
	e.counter.SetEnabled(false)
	return ^e.counter.GetX()
}

type outPin struct {
	p machine.Pin
}

func (o outPin) Set(high bool) { o.p.Set(high) }

// DirPin adapts a GPIO to the core's direction-pin interface, configuring
// it as an output.
func DirPin(p machine.Pin) core.PinOut {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return outPin{p: p}
}
