package stpengine

import "fmt"

// Sentinel errors returned at the public API boundary. Most host
// contract violations (out-of-range indices, a nil callback table)
// are cheap to detect and report here rather than asserting.
var (
	ErrPortOutOfRange = fmt.Errorf("stpengine: port index out of range")
	ErrTreeOutOfRange = fmt.Errorf("stpengine: tree index out of range")
	ErrNilCallbacks   = fmt.Errorf("stpengine: callback table must be fully populated")
	// ErrReentrantCall names a re-entrant call from a callback; no
	// entry point returns it.
	ErrReentrantCall = fmt.Errorf("stpengine: re-entrant call into engine from within a callback")
)

func validateCallbacks(c Callbacks) error {
	if c == nil {
		return ErrNilCallbacks
	}
	return nil
}
