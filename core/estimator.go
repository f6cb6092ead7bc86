package core

import "time"

// Estimate returns the expected physical run time of a move: steps pulses
// at the achievable (post-quantization) frequency. It is evaluated strictly
// before the engine starts, so the caller holds the duration at the moment
// Move returns and can prepare the next command while the motor is still
// turning instead of polling for the end of the run.
func Estimate(steps uint32, achievableHz float64) time.Duration {
	if steps == 0 || achievableHz <= 0 {
		return 0
	}
	return time.Duration(float64(steps) / achievableHz * float64(time.Second))
}
