package services

import (
	"sync"
	"time"
)

// SubmissionGuard holds short-lived named locks that stop a client from
// signing the same ride action twice while the first transaction is still
// pending. A lock normally ends with Release; the TTL covers submissions
// whose caller stopped waiting while the transaction may still be mined.
//
// Go Learning Note — Channels for Signaling:
// The `stop` field is a `chan struct{}` used purely for signaling.
// close(stop) wakes every receiver at once, so the janitor goroutine exits as
// soon as Stop is called.
type SubmissionGuard struct {
	mu    sync.Mutex
	locks map[string]time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewSubmissionGuard starts a guard whose janitor sweeps expired locks every
// sweep interval.
func NewSubmissionGuard(sweep time.Duration) *SubmissionGuard {
	g := &SubmissionGuard{
		locks: make(map[string]time.Time),
		stop:  make(chan struct{}),
	}
	if sweep > 0 {
		go g.sweepExpired(sweep)
	}
	return g
}

// Acquire takes key for ttl. It returns false while another holder's lock
// is still live.
func (g *SubmissionGuard) Acquire(key string, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if expires, ok := g.locks[key]; ok && now.Before(expires) {
		return false
	}
	g.locks[key] = now.Add(ttl)
	return true
}

func (g *SubmissionGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, key)
}

func (g *SubmissionGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	expires, ok := g.locks[key]
	return ok && time.Now().Before(expires)
}

// sweepExpired drops stale locks so abandoned keys do not accumulate.
//
// Go Learning Note — Safe Map Deletion During Iteration:
// Deleting keys inside a for-range over the same map is explicitly allowed
// in Go.
func (g *SubmissionGuard) sweepExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.mu.Lock()
			now := time.Now()
			for key, expires := range g.locks {
				if now.After(expires) {
					delete(g.locks, key)
				}
			}
			g.mu.Unlock()
		case <-g.stop:
			return
		}
	}
}

// Stop ends the janitor goroutine. It is safe to call more than once.
func (g *SubmissionGuard) Stop() {
	g.once.Do(func() { close(g.stop) })
}
