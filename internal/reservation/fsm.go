// Package reservation turns a cart and a pickup choice into a reservation
// at the record API.
package reservation

import (
	"sync"
	"time"
)

// State is the phase of a submission attempt.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// FSM holds the allowed transitions of an attempt.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the submission state machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:       {StateSubmitting},
			StateSubmitting: {StateConfirmed, StateFailed},
			StateFailed:     {StateIdle},
			StateConfirmed:  {StateIdle},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the attempt to state to if allowed.
func (f *FSM) Transition(a *Attempt, to State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !f.CanTransition(a.state, to) {
		return false
	}
	a.state = to
	a.updatedAt = time.Now()
	return true
}

// Attempt tracks the submission of one session.
type Attempt struct {
	mu        sync.Mutex
	state     State
	input     Input
	lastError string
	updatedAt time.Time
}

func newAttempt() *Attempt {
	return &Attempt{state: StateIdle, updatedAt: time.Now()}
}

// State returns the current phase.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Input is the last submitted form input, kept after a failure.
func (a *Attempt) Input() Input {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input
}

// LastError is the message of the last failed submission.
func (a *Attempt) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// begin moves Idle to Submitting and records input. False if an attempt is
// already in flight.
func (a *Attempt) begin(f *FSM, in Input) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !f.CanTransition(a.state, StateSubmitting) {
		return false
	}
	a.state = StateSubmitting
	a.input = in
	a.lastError = ""
	a.updatedAt = time.Now()
	return true
}

func (a *Attempt) setError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = msg
}

func (a *Attempt) idleSince(cutoff time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateIdle && a.updatedAt.Before(cutoff)
}
