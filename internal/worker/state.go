package worker

import "sync"

// State is one point in the per-worker state machine from spec.md
// §4.6: Idle → Packing → Waiting-for-admission → Sending → Packing …
// → Flushing → Finished / Errored / Cancelled.
type State int

const (
	Idle State = iota
	Packing
	WaitingForAdmission
	Sending
	Flushing
	Finished
	Errored
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Packing:
		return "packing"
	case WaitingForAdmission:
		return "waiting-for-admission"
	case Sending:
		return "sending"
	case Flushing:
		return "flushing"
	case Finished:
		return "finished"
	case Errored:
		return "errored"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the three terminal states.
func (s State) Terminal() bool {
	return s == Finished || s == Errored || s == Cancelled
}

// Tracker records the current point in a worker's state machine and,
// like spec.md §9's "current file" string, exists for observability
// only: it has no bearing on the packer/sender control flow itself.
// A nil *Tracker is a valid no-op, so callers that don't care about
// state never need to construct one.
type Tracker struct {
	mu      sync.Mutex
	state   State
	onState func(State)
}

// NewTracker builds a Tracker that reports every transition to
// onState, which may be nil.
func NewTracker(onState func(State)) *Tracker {
	return &Tracker{onState: onState}
}

// Set records a transition to s and, if it actually changed the
// state, reports it.
func (t *Tracker) Set(s State) {
	if t == nil {
		return
	}
	t.mu.Lock()
	changed := t.state != s
	t.state = s
	cb := t.onState
	t.mu.Unlock()
	if changed && cb != nil {
		cb(s)
	}
}

// State returns the last state recorded.
func (t *Tracker) State() State {
	if t == nil {
		return Idle
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
