package core

// PinOut is the minimal output-pin interface the core needs for the
// direction signal. Targets back it with a machine.Pin; host tests use
// SimPin.
type PinOut interface {
	Set(high bool)
}

// SimPin records the last level written to it. Host-side stand-in for a
// GPIO output.
type SimPin struct {
	Level bool
	Sets  int // number of writes, to catch mid-run toggling
}

func (p *SimPin) Set(high bool) {
	p.Level = high
	p.Sets++
}
