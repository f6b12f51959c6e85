package sales

import (
	"sync"
	"time"
)

// Clock supplies the logical time used to timestamp sales. Values must never decrease.
type Clock interface {
	CurrentLogicalTime() int64
}

// MonotonicClock reports Unix seconds, holding its last value if the wall clock steps back.
type MonotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) CurrentLogicalTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.now().Unix(); t > c.last {
		c.last = t
	}
	return c.last
}

// FixedClock always reports the same time.
type FixedClock int64

func (c FixedClock) CurrentLogicalTime() int64 { return int64(c) }
