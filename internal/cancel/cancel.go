// Package cancel provides the single shared cancellation flag that
// every worker, the scan goroutine, and the adaptive controller poll.
package cancel

import "sync/atomic"

// Flag is a cooperative, idempotent cancellation signal. The zero
// value is a usable, not-yet-cancelled flag.
type Flag struct {
	set atomic.Bool
}

// Cancel flips the flag. Safe to call more than once, from any
// goroutine. A nil *Flag is treated as "no cancellation wired up" and
// Cancel becomes a no-op, so callers never need to nil-check before
// signalling.
func (f *Flag) Cancel() {
	if f == nil {
		return
	}
	f.set.Store(true)
}

// Cancelled reports whether Cancel has been called. A nil *Flag always
// reports false.
func (f *Flag) Cancelled() bool {
	if f == nil {
		return false
	}
	return f.set.Load()
}
