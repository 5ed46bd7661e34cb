// Package clock provides the wall clock used by the ledger, with a simulated
// offset that the admin control plane can advance.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time shifted by an adjustable offset.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
	base   func() time.Time
}

// New creates a clock backed by time.Now with no offset.
func New() *Clock {
	return &Clock{base: time.Now}
}

// NewAt creates a clock frozen at t. Advance still moves it forward.
func NewAt(t time.Time) *Clock {
	return &Clock{base: func() time.Time { return t }}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base().Add(c.offset)
}

// Advance moves the simulated clock forward by the given duration.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset resets the clock offset to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Offset returns the current clock offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
