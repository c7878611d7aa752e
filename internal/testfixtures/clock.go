package testfixtures

import (
	"sync"
	"time"
)

var referenceTime = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the instant fixtures are anchored to: Wednesday 1 May 2024,
// 09:00 UTC.
func ReferenceTime() time.Time {
	return referenceTime
}

// Clock is a controllable time source. When a step is configured every call to Now
// moves the clock forward by it, which keeps created_at ordering deterministic.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the clock time and then applies the configured step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Peek returns the clock time without applying the step.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Step makes every later Now call advance the clock by d. Zero disables stepping.
func (c *Clock) Step(d time.Duration) {
	c.mu.Lock()
	c.step = d
	c.mu.Unlock()
}
