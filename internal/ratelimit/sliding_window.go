package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter enforces a quota over a rolling window using two
// fixed buckets: the current window plus the previous one weighted by how
// much of it still overlaps.
//
// Memory is constant per key, unlike a log of timestamps.
type SlidingWindowCounter struct {
	mu sync.Mutex

	prevCount int
	currCount int

	currWindowStart time.Time
	windowDuration  time.Duration
	limit           int
	now             func() time.Time
}

// NewSlidingWindowCounter returns nil when limit is not positive. A nil
// counter allows everything.
func NewSlidingWindowCounter(limit int, window time.Duration) *SlidingWindowCounter {
	if limit <= 0 {
		return nil
	}

	c := &SlidingWindowCounter{
		windowDuration: window,
		limit:          limit,
		now:            time.Now,
	}
	c.currWindowStart = c.now()
	return c
}

// AllowN adds n to the window if the weighted total stays within the limit.
func (c *SlidingWindowCounter) AllowN(n int) bool {
	if c == nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	if c.weighted()+float64(n) > float64(c.limit) {
		return false
	}
	c.currCount += n
	return true
}

// Check reports whether n more units would fit without recording them.
func (c *SlidingWindowCounter) Check(n int) bool {
	if c == nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return c.weighted()+float64(n) <= float64(c.limit)
}

// rotate moves to the window containing now. Caller holds mu.
func (c *SlidingWindowCounter) rotate() {
	elapsed := c.now().Sub(c.currWindowStart)
	if elapsed < c.windowDuration {
		return
	}

	passed := int(elapsed / c.windowDuration)
	if passed == 1 {
		c.prevCount = c.currCount
	} else {
		c.prevCount = 0
	}
	c.currCount = 0
	c.currWindowStart = c.currWindowStart.Add(time.Duration(passed) * c.windowDuration)
}

// weighted returns the effective count. Caller holds mu.
func (c *SlidingWindowCounter) weighted() float64 {
	elapsed := c.now().Sub(c.currWindowStart)
	overlap := float64(c.windowDuration-elapsed) / float64(c.windowDuration)
	overlap = min(max(overlap, 0), 1)
	return float64(c.currCount) + float64(c.prevCount)*overlap
}

// Remaining returns the approximate quota left, or -1 for a nil counter.
func (c *SlidingWindowCounter) Remaining() int {
	if c == nil {
		return -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rotate()
	return max(int(float64(c.limit)-c.weighted()), 0)
}
