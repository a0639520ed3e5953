package kernel

import (
	"sync"
	"time"
)

// Clock reports time elapsed since boot in microseconds. It never goes
// backwards.
type Clock interface {
	Micros() uint64
}

type MonotonicClock struct {
	boot time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{boot: time.Now()}
}

func (c *MonotonicClock) Micros() uint64 {
	return uint64(time.Since(c.boot) / time.Microsecond)
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu sync.Mutex
	us uint64
}

func (c *ManualClock) Micros() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.us
}

func (c *ManualClock) Set(us uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if us > c.us {
		c.us = us
	}
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.us += uint64(d / time.Microsecond)
}
