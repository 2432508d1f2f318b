// Package parallelism holds the shared state the adaptive controller
// writes and every worker's admission gate reads, kept in its own
// package so internal/worker and internal/coordinator don't need to
// import each other (spec.md §3 "AllowedParallelism", §4.5).
package parallelism

import (
	"sync/atomic"
	"time"
)

// Allowed is the shared, monotonic-bounded concurrency window: every
// worker with id >= Allowed.Get() parks at the admission gate.
type Allowed struct {
	n atomic.Int64
}

// NewAllowed creates the counter initialised to max (spec.md §4.5).
func NewAllowed(max int) *Allowed {
	a := &Allowed{}
	a.n.Store(int64(max))
	return a
}

func (a *Allowed) Get() int { return int(a.n.Load()) }

// Inc increments by one, never exceeding max.
func (a *Allowed) Inc(max int) {
	for {
		cur := a.n.Load()
		if cur >= int64(max) {
			return
		}
		if a.n.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// Dec decrements by one, never going below 1.
func (a *Allowed) Dec() {
	for {
		cur := a.n.Load()
		if cur <= 1 {
			return
		}
		if a.n.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// LastProgress is the shared "last time any worker made progress"
// timestamp, stored as UnixNano so it's atomic-friendly.
type LastProgress struct {
	nanos atomic.Int64
}

// NewLastProgress returns a tracker initialised to now.
func NewLastProgress() *LastProgress {
	lp := &LastProgress{}
	lp.Touch()
	return lp
}

// Touch records progress at the current time. Called from whichever
// worker goroutine currently holds the progress event.
func (lp *LastProgress) Touch() {
	lp.nanos.Store(time.Now().UnixNano())
}

// Since returns how long it has been since the last Touch.
func (lp *LastProgress) Since() time.Duration {
	return time.Since(time.Unix(0, lp.nanos.Load()))
}
