package testutil

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for tests.
//
// Services take a func() time.Time; pass clock.Now so a test controls
// every timestamp and calendar-day computation.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock fixed at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// NewClockAt creates a clock at noon UTC on the given YYYY-MM-DD date.
// Panics on a malformed date; intended for test literals.
func NewClockAt(date string) *Clock {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return NewClock(d.Add(12 * time.Hour))
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceDays moves the clock forward by n calendar days.
func (c *Clock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}
