package notify

import (
	"sync"
	"time"
)

// Coordinator throttles a shared fetch resource across independent
// consumers. It replaces the old pattern of a global mutable object with
// isFetching/lastFetchTime fields that every component poked at: consumers
// now receive the coordinator explicitly and call TryAcquire/Release around
// their fetch.
type Coordinator struct {
	mu          sync.Mutex
	minInterval time.Duration
	fetching    bool
	lastFetch   time.Time
	now         func() time.Time
}

func NewCoordinator(minInterval time.Duration) *Coordinator {
	return &Coordinator{minInterval: minInterval, now: time.Now}
}

// TryAcquire reports whether the caller may fetch now. It fails while
// another fetch is in flight or while the spacing interval since the last
// acquisition has not elapsed. On success the caller owns the slot until
// Release.
func (c *Coordinator) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetching {
		return false
	}
	now := c.now()
	if !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.minInterval {
		return false
	}
	c.fetching = true
	c.lastFetch = now
	return true
}

// Release frees the slot after a fetch completes, successfully or not.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
}

// LastFetch returns when the slot was last acquired.
func (c *Coordinator) LastFetch() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetch
}
