// Package coalescer implements the Stream Coalescer: per-segment
// debounce/force-commit controller deciding when an evolving transcript
// fragment has settled enough to reach the UI, plus the SegmentManager
// that routes updates to per-key coalescers and sweeps inactive ones.
//
// Both the debounce and force-commit timers are driven by an injected
// Clock rather than calling time.AfterFunc directly, so tests can drive
// time deterministically.
package coalescer

import "time"

// Clock abstracts wall-clock time and timer creation so coalescer
// behavior is fully deterministic under test.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer the coalescer needs.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// realClock is the production Clock backed by the standard library.
type realClock struct{}

// RealClock returns the production time.Time/time.AfterFunc-backed Clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
