package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestFailureTracker(t *testing.T) {
	f := failureTracker{max: 3}

	escalations := 0
	for i := 0; i < 5; i++ {
		if f.fail() {
			escalations++
		}
	}
	if escalations != 1 {
		t.Errorf("Expected one escalation for five failures, got %d", escalations)
	}
	if !f.succeed() {
		t.Error("Expected succeed to report recovery after escalation")
	}
	if f.succeed() {
		t.Error("Expected no recovery without a prior escalation")
	}

	f.fail()
	f.fail()
	if !f.fail() {
		t.Error("Expected escalation to re-arm after a success")
	}
}

func TestRunLoop_TicksDoNotOverlap(t *testing.T) {
	var running, overlaps, ticks int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		runLoop(ctx, time.Millisecond, nil, func(context.Context) bool {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return atomic.AddInt32(&ticks, 1) < 5
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop when tick returned false")
	}
	cancel()

	if overlaps != 0 {
		t.Errorf("Expected no overlapping ticks, got %d", overlaps)
	}
	if ticks != 5 {
		t.Errorf("Expected 5 ticks, got %d", ticks)
	}
}

func TestRunLoop_KickRunsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kick := newKick()
	var ticks int32
	go runLoop(ctx, time.Hour, kick, func(context.Context) bool {
		atomic.AddInt32(&ticks, 1)
		return true
	})

	waitUntil(t, "immediate tick", func() bool { return atomic.LoadInt32(&ticks) == 1 })
	poke(kick)
	poke(kick)
	waitUntil(t, "kicked tick", func() bool { return atomic.LoadInt32(&ticks) >= 2 })
}
