package crdt

import (
	"sync"
	"time"
)

// hybridClock implements this port's timestamp policy for LWW entries
// (SPEC_FULL.md §4: "hybrid logical clock"): max(wallClockMillis,
// lastLocal+1), monotonic even across clock skew or several writes landing
// in the same millisecond.
type hybridClock struct {
	mu   sync.Mutex
	last int64
}

func (c *hybridClock) next() int64 {
	now := time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.last {
		c.last = now
	} else {
		c.last++
	}
	return c.last
}
