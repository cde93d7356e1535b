package boids

import (
	"time"
)

// Clock tracks frame time. Tick advances it to now and records the elapsed Dt.
type Clock struct {
	Time time.Time
	Dt   time.Duration

	now func() time.Time
}

func NewClock() *Clock {
	return newClock(time.Now)
}

func newClock(now func() time.Time) *Clock {
	return &Clock{Time: now(), now: now}
}

func (c *Clock) Tick() time.Duration {
	now := c.now()

	c.Dt = now.Sub(c.Time)
	c.Time = now
	return c.Dt
}
