package discovery

import (
	"errors"
	"sync"
	"time"
)

// ErrScanCooldown is returned by Scan when a Cooldown rejects the attempt.
var ErrScanCooldown = errors.New("discovery: scan rejected by cooldown")

// Cooldown rate-limits scans. It is explicit injected state rather than a
// package-level timestamp so callers control both the interval and, in
// tests, the clock.
type Cooldown struct {
	// Interval is the minimum time between permitted scans.
	Interval time.Duration

	// Now supplies the current time. Nil means time.Now.
	Now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Allow reports whether a scan may start now, and if so records it.
func (c *Cooldown) Allow() bool {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := now()
	if !c.last.IsZero() && t.Sub(c.last) < c.Interval {
		return false
	}
	c.last = t
	return true
}
