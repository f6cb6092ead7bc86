package core

// Speed command word handling.
//
// A move is commanded with a single fixed-width unsigned word: values below
// the midpoint 2^(bits-1) spin the motor one way, values at or above it the
// other, and the distance from the midpoint is the requested step frequency
// in Hz. How the word reaches the driver (I2C, UART, a local call) is the
// caller's business.

// Direction of rotation, derived from the speed word's position relative to
// the midpoint.
type Direction uint8

const (
	DirReverse Direction = iota // word below midpoint
	DirForward                  // word at or above midpoint
)

func (d Direction) String() string {
	if d == DirForward {
		return "forward"
	}
	return "reverse"
}

// DefaultSpeedBits is the speed word width used when a Config leaves
// SpeedBits zero. 16 bits gives a midpoint of 32768 and a usable magnitude
// of up to 32767 Hz either way, well past any band this driver plans for.
const DefaultSpeedBits = 16

// DecodeSpeed splits a speed word of the given bit width into direction and
// requested frequency. Words that do not fit the width are rejected.
func DecodeSpeed(word uint32, bits uint8) (Direction, uint32, error) {
	if bits < 2 || bits > 31 || word>>bits != 0 {
		return DirReverse, 0, ErrSpeedWord
	}
	mid := uint32(1) << (bits - 1)
	if word >= mid {
		return DirForward, word - mid, nil
	}
	return DirReverse, mid - word, nil
}

// EncodeSpeed builds the speed word for a direction and frequency. Inverse
// of DecodeSpeed; fails if the frequency magnitude does not fit the width.
func EncodeSpeed(dir Direction, freqHz uint32, bits uint8) (uint32, error) {
	if bits < 2 || bits > 31 {
		return 0, ErrSpeedWord
	}
	mid := uint32(1) << (bits - 1)
	if dir == DirForward {
		if freqHz > mid-1 {
			return 0, ErrSpeedWord
		}
		return mid + freqHz, nil
	}
	if freqHz > mid {
		return 0, ErrSpeedWord
	}
	return mid - freqHz, nil
}
