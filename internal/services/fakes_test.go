package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		RideInterval:    10 * time.Millisecond,
		FeedInterval:    10 * time.Millisecond,
		MaxReadFailures: 3,
		ReadTimeout:     time.Second,
		LocationMinMove: 25,
	}
}

// readResult is one scripted answer to ReadRide.
type readResult struct {
	status entities.RideStatus
	err    error
}

// scriptedReader answers reads from fixed scripts. Once a script runs out
// its last entry repeats.
type scriptedReader struct {
	mu        sync.Mutex
	rides     []readResult
	active    [][]entities.RideID
	activeErr []error
	rideReads int
	feedReads int
}

func (r *scriptedReader) ReadRide(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.rides[min(r.rideReads, len(r.rides)-1)]
	r.rideReads++
	if res.err != nil {
		return nil, res.err
	}
	return &entities.Ride{ID: id, Rider: "0xrider", Status: res.status}, nil
}

func (r *scriptedReader) ReadActiveRequests(ctx context.Context) ([]*entities.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.feedReads
	r.feedReads++
	if i < len(r.activeErr) && r.activeErr[i] != nil {
		return nil, r.activeErr[i]
	}
	ids := r.active[min(i, len(r.active)-1)]
	rides := make([]*entities.Ride, 0, len(ids))
	for _, id := range ids {
		rides = append(rides, &entities.Ride{ID: id, Rider: "0xrider", Origin: "Dixon", Status: entities.RideStatusRequested})
	}
	return rides, nil
}

func (r *scriptedReader) ReadDriver(ctx context.Context, address string) (*entities.Driver, error) {
	return nil, ledger.ErrNotFound
}

func (r *scriptedReader) ReadAccountRides(ctx context.Context, address string) ([]entities.RideID, error) {
	return nil, nil
}

func (r *scriptedReader) rideReadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rideReads
}

func (r *scriptedReader) feedReadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feedReads
}

// manualPush is a Subscriber whose events the test sends by hand.
type manualPush struct {
	ch  chan ledger.Event
	err error
}

func newManualPush() *manualPush {
	return &manualPush{ch: make(chan ledger.Event, 8)}
}

func (p *manualPush) Subscribe(ctx context.Context, types ...ledger.EventType) (<-chan ledger.Event, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make(chan ledger.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-p.ch:
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *recordingNotifier) Notify(severity Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{Severity: severity, Message: message})
}

func (n *recordingNotifier) count(severity Severity) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, item := range n.items {
		if item.Severity == severity {
			c++
		}
	}
	return c
}

// changeLog collects StatusChanges from a poller handler.
type changeLog struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (l *changeLog) add(c StatusChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) statuses() []entities.RideStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entities.RideStatus, 0, len(l.changes))
	for _, c := range l.changes {
		out = append(out, c.To)
	}
	return out
}

func (l *changeLog) snapshot() []StatusChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StatusChange(nil), l.changes...)
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	waitWithin(t, what, 2*time.Second, cond)
}

// waitWithin fails the test unless cond holds within limit.
func waitWithin(t *testing.T, what string, limit time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(limit)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out after %v waiting for %s", limit, what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for poller to stop")
	}
}
