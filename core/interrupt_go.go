//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// critical guards the task table. On regular Go the tick source is a
// goroutine, so a mutex stands in for interrupt masking.
type critical struct {
	mu sync.Mutex
}

// enter locks the table and returns the (unused) previous state
func (c *critical) enter() State {
	c.mu.Lock()
	return 0
}

// exit unlocks the table
func (c *critical) exit(state State) {
	c.mu.Unlock()
}
