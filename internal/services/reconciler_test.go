package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

type updateLog struct {
	mu      sync.Mutex
	updates []FeedUpdate
}

func (l *updateLog) add(u FeedUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, u)
}

func (l *updateLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates)
}

func (l *updateLog) at(i int) FeedUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates[i]
}

func setupReconciler(reader *scriptedReader, push ledger.Subscriber, interval time.Duration) (*FeedReconciler, *updateLog) {
	cfg := testSyncConfig()
	cfg.FeedInterval = interval
	updates := &updateLog{}
	return NewFeedReconciler(cfg, reader, push, updates.add, nil, logger.Discard()), updates
}

func ids(entries []FeedEntry) []entities.RideID {
	out := make([]entities.RideID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Ride.ID)
	}
	return out
}

func set(ids ...entities.RideID) map[entities.RideID]struct{} {
	m := make(map[entities.RideID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		displayed  map[entities.RideID]struct{}
		fetched    map[entities.RideID]struct{}
		wantRemove []entities.RideID
		wantAdd    []entities.RideID
	}{
		{"overlap", set(1, 2, 3), set(2, 3, 4), []entities.RideID{1}, []entities.RideID{4}},
		{"unchanged", set(1, 2), set(1, 2), nil, nil},
		{"from empty", set(), set(5, 3), nil, []entities.RideID{3, 5}},
		{"to empty", set(2, 1), set(), []entities.RideID{1, 2}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remove, add := Diff(tt.displayed, tt.fetched)
			if !reflect.DeepEqual(remove, tt.wantRemove) {
				t.Errorf("Expected remove %v, got %v", tt.wantRemove, remove)
			}
			if !reflect.DeepEqual(add, tt.wantAdd) {
				t.Errorf("Expected add %v, got %v", tt.wantAdd, add)
			}
		})
	}
}

func TestFeedReconciler_SetDifference(t *testing.T) {
	reader := &scriptedReader{active: [][]entities.RideID{{1, 2, 3}, {2, 3, 4}}}
	rec, updates := setupReconciler(reader, nil, time.Hour)

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "initial tick", func() bool { return updates.count() == 1 })

	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if updates.count() != 2 {
		t.Fatalf("Expected 2 updates, got %d", updates.count())
	}
	u := updates.at(1)
	if !reflect.DeepEqual(u.Removed, []entities.RideID{1}) {
		t.Errorf("Expected removal of [1], got %v", u.Removed)
	}
	if got := ids(u.Added); !reflect.DeepEqual(got, []entities.RideID{4}) {
		t.Errorf("Expected addition of [4], got %v", got)
	}
	if got := ids(rec.Feed()); !reflect.DeepEqual(got, []entities.RideID{2, 3, 4}) {
		t.Errorf("Expected feed [2 3 4], got %v", got)
	}
}

func TestFeedReconciler_Idempotent(t *testing.T) {
	reader := &scriptedReader{active: [][]entities.RideID{{1, 2}}}
	rec, updates := setupReconciler(reader, nil, time.Hour)

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "initial tick", func() bool { return updates.count() == 1 })

	for i := 0; i < 3; i++ {
		rec.Refresh(context.Background())
	}

	if updates.count() != 1 {
		t.Errorf("Expected no further updates for unchanged data, got %d", updates.count()-1)
	}
	if got := ids(rec.Feed()); !reflect.DeepEqual(got, []entities.RideID{1, 2}) {
		t.Errorf("Expected feed [1 2], got %v", got)
	}
}

func TestFeedReconciler_DisableClearsAndHalts(t *testing.T) {
	reader := &scriptedReader{active: [][]entities.RideID{{1, 2}}}
	rec, _ := setupReconciler(reader, nil, 10*time.Millisecond)

	rec.Enable(context.Background())
	waitUntil(t, "feed populated", func() bool { return len(rec.Feed()) == 2 })

	rec.Disable()
	if n := len(rec.Feed()); n != 0 {
		t.Errorf("Expected empty feed after disable, got %d entries", n)
	}

	reads := reader.feedReadCount()
	time.Sleep(50 * time.Millisecond)
	if got := reader.feedReadCount(); got != reads {
		t.Errorf("Expected no reads while disabled, got %d more", got-reads)
	}
	if err := rec.Refresh(context.Background()); !errors.Is(err, ErrFeedDisabled) {
		t.Errorf("Expected ErrFeedDisabled, got %v", err)
	}

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "feed repopulated", func() bool { return len(rec.Feed()) == 2 })
}

func TestFeedReconciler_TransientFailureKeepsFeed(t *testing.T) {
	reader := &scriptedReader{
		active:    [][]entities.RideID{{1}, {1}, {1, 2}},
		activeErr: []error{nil, errNetwork},
	}
	rec, updates := setupReconciler(reader, nil, time.Hour)

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "initial tick", func() bool { return updates.count() == 1 })

	rec.Refresh(context.Background())
	if got := ids(rec.Feed()); !reflect.DeepEqual(got, []entities.RideID{1}) {
		t.Errorf("Expected feed to survive a failed read, got %v", got)
	}
	rec.Refresh(context.Background())
	if got := ids(rec.Feed()); !reflect.DeepEqual(got, []entities.RideID{1, 2}) {
		t.Errorf("Expected feed [1 2] after recovery, got %v", got)
	}
}

func TestFeedReconciler_EscalatesPersistentFailures(t *testing.T) {
	reader := &scriptedReader{
		active:    [][]entities.RideID{{1}},
		activeErr: []error{nil, errNetwork, errNetwork, errNetwork, errNetwork, errNetwork},
	}
	cfg := testSyncConfig()
	cfg.FeedInterval = time.Hour
	notifier := &recordingNotifier{}
	updates := &updateLog{}
	rec := NewFeedReconciler(cfg, reader, nil, updates.add, notifier, logger.Discard())

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "initial tick", func() bool { return updates.count() == 1 })

	for i := 0; i < 5; i++ {
		rec.Refresh(context.Background())
	}
	if n := notifier.count(SeverityError); n != 1 {
		t.Errorf("Expected a single escalation, got %d", n)
	}

	rec.Refresh(context.Background())
	if n := notifier.count(SeverityInfo); n != 1 {
		t.Errorf("Expected a recovery notification, got %d", n)
	}
	if got := ids(rec.Feed()); !reflect.DeepEqual(got, []entities.RideID{1}) {
		t.Errorf("Expected feed [1] after recovery, got %v", got)
	}
}

func TestFeedReconciler_PushTriggersTick(t *testing.T) {
	reader := &scriptedReader{active: [][]entities.RideID{{}, {8}}}
	push := newManualPush()
	rec, _ := setupReconciler(reader, push, time.Hour)

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "initial tick", func() bool { return reader.feedReadCount() == 1 })

	push.ch <- ledger.Event{Type: ledger.EventRideRequested, RideID: 8}
	waitUntil(t, "pushed ride", func() bool { return rec.Contains(8) })
}

func TestFeedReconciler_SubscribeFailureFallsBackToPolling(t *testing.T) {
	reader := &scriptedReader{active: [][]entities.RideID{{1}, {1, 2}}}
	push := &manualPush{err: errors.New("websocket: bad handshake")}
	rec, _ := setupReconciler(reader, push, 10*time.Millisecond)

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "polled update", func() bool { return rec.Contains(2) })
}

func TestFeedReconciler_PauseAndResume(t *testing.T) {
	reader := &scriptedReader{active: [][]entities.RideID{{1}, {1, 3}}}
	rec, _ := setupReconciler(reader, nil, time.Hour)

	rec.Enable(context.Background())
	defer rec.Disable()
	waitUntil(t, "initial tick", func() bool { return rec.Contains(1) })

	rec.Pause()
	if len(rec.Feed()) != 0 {
		t.Error("Expected pause to clear the feed")
	}
	reads := reader.feedReadCount()
	rec.Refresh(context.Background())
	if reader.feedReadCount() != reads {
		t.Error("Expected no reads while paused")
	}

	rec.Resume()
	waitUntil(t, "resumed feed", func() bool { return rec.Contains(3) })
}

func TestFeedReconciler_DistanceHint(t *testing.T) {
	rec, _ := setupReconciler(&scriptedReader{active: [][]entities.RideID{{}}}, nil, time.Hour)
	rec.SetOrigin(entities.NewLocation(37.7749, -122.4194))

	rec.mu.Lock()
	rec.enabled = true
	rec.mu.Unlock()
	rec.apply([]*entities.Ride{
		{ID: 1, Origin: "37.4419, -122.1430", Status: entities.RideStatusRequested},
		{ID: 2, Origin: "Berkeley", Status: entities.RideStatusRequested},
	})

	feed := rec.Feed()
	if len(feed) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(feed))
	}
	if feed[0].DistanceKm == nil || *feed[0].DistanceKm < 40 || *feed[0].DistanceKm > 50 {
		t.Errorf("Expected SF to Palo Alto distance near 45 km, got %v", feed[0].DistanceKm)
	}
	if feed[1].DistanceKm != nil {
		t.Errorf("Expected no distance for a named pickup, got %v", *feed[1].DistanceKm)
	}
}

func TestFeedReconciler_DistanceHintWithLookup(t *testing.T) {
	rec, _ := setupReconciler(&scriptedReader{active: [][]entities.RideID{{}}}, nil, time.Hour)
	rec.SetOrigin(entities.NewLocation(37.7749, -122.4194))
	rec.SetPlaceLookup(func(text string) (entities.Location, bool) {
		if text == "Berkeley" {
			return entities.NewLocation(37.8715, -122.2730), true
		}
		return CoordinatesOnly(text)
	})

	rec.mu.Lock()
	rec.enabled = true
	rec.mu.Unlock()
	rec.apply([]*entities.Ride{
		{ID: 1, Origin: "Berkeley", Status: entities.RideStatusRequested},
		{ID: 2, Origin: "Somewhere", Status: entities.RideStatusRequested},
	})

	feed := rec.Feed()
	if len(feed) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(feed))
	}
	if feed[0].DistanceKm == nil || *feed[0].DistanceKm < 10 || *feed[0].DistanceKm > 25 {
		t.Errorf("Expected SF to Berkeley distance near 17 km, got %v", feed[0].DistanceKm)
	}
	if feed[1].DistanceKm != nil {
		t.Errorf("Expected no distance for an unknown pickup, got %v", *feed[1].DistanceKm)
	}
}
