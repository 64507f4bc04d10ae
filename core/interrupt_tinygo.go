//go:build tinygo

package core

import "runtime/interrupt"

// State is the saved interrupt mask
type State = interrupt.State

// critical guards the task table against the timer interrupt.
// A mutex cannot be used here: Tick runs inside the ISR.
type critical struct{}

// enter disables interrupts and returns the previous state
func (c *critical) enter() State {
	return interrupt.Disable()
}

// exit restores the interrupt state
func (c *critical) exit(state State) {
	interrupt.Restore(state)
}
