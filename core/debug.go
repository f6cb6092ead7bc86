package core

// DebugWriter is a function type for writing debug messages.
type DebugWriter func(string)

var (
	// debugPrintln is the global debug print function (set by platform code).
	debugPrintln DebugWriter = func(string) {}

	// debugEnabled controls whether debug output is active.
	// Disabled by default so it cannot perturb run timing.
	debugEnabled bool
)

// SetDebugWriter sets the platform-specific debug output function.
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(w DebugWriter) {
	if w != nil {
		debugPrintln = w
	}
}

// SetDebugEnabled enables or disables debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func debugPrint(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}
