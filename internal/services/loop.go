package services

import (
	"context"
	"time"
)

// runLoop calls tick once immediately and then again interval after the
// previous tick returned, until ctx is done or tick returns false. A value on
// kick runs the next tick early.
//
// Go Learning Note — time.NewTimer vs time.Ticker:
// A Ticker fires on a fixed cadence whether or not the last tick finished, so
// a slow read would queue up reads behind it. Re-arming a Timer after each
// tick guarantees ticks never overlap and never pile up.
func runLoop(ctx context.Context, interval time.Duration, kick <-chan struct{}, tick func(ctx context.Context) bool) {
	if !tick(ctx) {
		return
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if ctx.Err() != nil || !tick(ctx) {
			return
		}
		timer.Reset(interval)
	}
}

// newKick returns a single-slot channel. Any number of pokes while a tick is
// running collapse into one extra tick.
func newKick() chan struct{} {
	return make(chan struct{}, 1)
}

func poke(kick chan<- struct{}) {
	select {
	case kick <- struct{}{}:
	default:
	}
}

// failureTracker counts consecutive failed reads and reports the moment the
// count crosses max, once, until a success resets it.
type failureTracker struct {
	max       int
	count     int
	escalated bool
}

// fail records a failure and returns true exactly when it should be surfaced.
func (f *failureTracker) fail() bool {
	f.count++
	if f.max > 0 && f.count >= f.max && !f.escalated {
		f.escalated = true
		return true
	}
	return false
}

// succeed resets the streak. It returns true if an escalation was cleared.
func (f *failureTracker) succeed() bool {
	recovered := f.escalated
	f.count = 0
	f.escalated = false
	return recovered
}
