// Package guard allows at most one in-flight submission per form.
package guard

import (
	"context"
	"sync/atomic"
)

// State of a Guard.
type State int32

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	if s == Submitting {
		return "submitting"
	}
	return "idle"
}

// Guard is an Idle/Submitting latch. The zero value is idle and ready to use.
type Guard struct {
	state atomic.Int32
}

// State returns the current state.
func (g *Guard) State() State { return State(g.state.Load()) }

// Busy reports whether a submission is in flight.
func (g *Guard) Busy() bool { return g.State() == Submitting }

// Run executes fn unless a submission is already in flight, in which case it
// returns ran=false without calling fn. The guard is released when fn
// returns, fails or panics.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) (ran bool, err error) {
	if !g.state.CompareAndSwap(int32(Idle), int32(Submitting)) {
		return false, nil
	}
	defer g.state.Store(int32(Idle))
	return true, fn(ctx)
}
