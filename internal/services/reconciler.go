package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

// feedEvents are the ledger events that can change the open request set.
var feedEvents = []ledger.EventType{
	ledger.EventRideRequested,
	ledger.EventRideAccepted,
	ledger.EventRideDeclined,
}

// FeedEntry is one open request shown to a driver. DistanceKm is advisory:
// it is set only when both the driver's position and the pickup are known
// coordinates.
type FeedEntry struct {
	Ride       *entities.Ride
	DistanceKm *float64
}

// FeedUpdate describes one reconciliation that changed the feed.
type FeedUpdate struct {
	Removed []entities.RideID
	Added   []FeedEntry
	Feed    []FeedEntry
}

// Diff returns which ids leave and which join when going from displayed to
// fetched. Both results are sorted.
func Diff(displayed, fetched map[entities.RideID]struct{}) (toRemove, toAdd []entities.RideID) {
	for id := range displayed {
		if _, ok := fetched[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	for id := range fetched {
		if _, ok := displayed[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] < toRemove[j] })
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i] < toAdd[j] })
	return toRemove, toAdd
}

// FeedReconciler keeps a driver's displayed open requests in line with the
// ledger's active request list.
//
// The loop runs only between Enable and Disable. Pause keeps the loop alive
// but empties the feed and skips fetching, which is how a driver with a ride
// in progress stops seeing new requests.
type FeedReconciler struct {
	cfg      config.SyncConfig
	reader   ledger.Reader
	push     ledger.Subscriber
	onUpdate func(FeedUpdate)
	notifier Notifier
	log      logrus.FieldLogger

	// tickMu serializes ticks so that a manual Refresh never overlaps the
	// loop.
	tickMu   sync.Mutex
	failures failureTracker

	mu        sync.Mutex
	displayed map[entities.RideID]FeedEntry
	origin    *entities.Location
	lookup    PlaceLookup
	paused    bool
	enabled   bool
	cancel    context.CancelFunc
	done      chan struct{}
	kick      chan struct{}
}

// NewFeedReconciler builds a disabled reconciler. onUpdate may be nil; when
// set it runs after every tick that changed the feed. notifier may be nil.
func NewFeedReconciler(cfg config.SyncConfig, reader ledger.Reader, push ledger.Subscriber, onUpdate func(FeedUpdate), notifier Notifier, log logrus.FieldLogger) *FeedReconciler {
	if onUpdate == nil {
		onUpdate = func(FeedUpdate) {}
	}
	if notifier == nil {
		notifier = nopNotifier()
	}
	closed := make(chan struct{})
	close(closed)
	return &FeedReconciler{
		cfg:       cfg,
		reader:    reader,
		push:      push,
		onUpdate:  onUpdate,
		notifier:  notifier,
		log:       logger.Component(log, "feed_reconciler"),
		displayed: make(map[entities.RideID]FeedEntry),
		lookup:    CoordinatesOnly,
		failures:  failureTracker{max: cfg.MaxReadFailures},
		done:      closed,
		kick:      newKick(),
	}
}

// Enable starts reconciliation with an immediate tick. It is a no-op when
// already enabled.
func (r *FeedReconciler) Enable(ctx context.Context) {
	r.mu.Lock()
	if r.enabled {
		r.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.enabled = true
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	r.subscribe(loopCtx)

	r.log.Info("request feed enabled")
	go func() {
		defer close(done)
		runLoop(loopCtx, r.cfg.FeedInterval, r.kick, func(ctx context.Context) bool {
			r.tick(ctx)
			return true
		})
	}()
}

// Disable stops the loop, waits for any tick in flight, then clears the feed.
// No tick runs after Disable returns.
func (r *FeedReconciler) Disable() {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.enabled = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	<-done

	r.clear()
	r.log.Info("request feed disabled")
}

// Pause empties the feed and suspends fetching until Resume.
func (r *FeedReconciler) Pause() {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	r.clear()
}

// Resume lifts a Pause and reconciles straight away.
func (r *FeedReconciler) Resume() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	poke(r.kick)
}

// Kick requests an out-of-cycle tick.
func (r *FeedReconciler) Kick() {
	poke(r.kick)
}

// SetOrigin records the driver's position for distance hints.
func (r *FeedReconciler) SetOrigin(loc entities.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origin = &loc
}

// SetPlaceLookup changes how pickup text is turned into coordinates for
// distance hints. lookup runs under the feed lock and must not block. nil
// restores CoordinatesOnly.
func (r *FeedReconciler) SetPlaceLookup(lookup PlaceLookup) {
	if lookup == nil {
		lookup = CoordinatesOnly
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup = lookup
}

// Refresh runs one tick synchronously. It returns ErrFeedDisabled when the
// reconciler is not enabled.
func (r *FeedReconciler) Refresh(ctx context.Context) error {
	if !r.Enabled() {
		return ErrFeedDisabled
	}
	r.tick(ctx)
	return nil
}

func (r *FeedReconciler) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

func (r *FeedReconciler) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Feed returns the displayed entries ordered by ride id.
func (r *FeedReconciler) Feed() []FeedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Contains reports whether id is currently displayed.
func (r *FeedReconciler) Contains(id entities.RideID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.displayed[id]
	return ok
}

func (r *FeedReconciler) subscribe(ctx context.Context) {
	if r.push == nil {
		return
	}
	events, err := r.push.Subscribe(ctx, feedEvents...)
	if err != nil {
		r.log.WithError(err).Warn("event subscription unavailable, polling only")
		return
	}
	go func() {
		for range events {
			poke(r.kick)
		}
	}()
}

func (r *FeedReconciler) tick(ctx context.Context) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	if r.Paused() {
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	rides, err := r.reader.ReadActiveRequests(readCtx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if r.failures.fail() {
			r.log.WithError(err).Error("active requests unreadable for several ticks")
			r.notifier.Notify(SeverityError, "Unable to load ride requests from the ledger")
		} else {
			r.log.WithError(err).Warn("active request read failed, retrying next tick")
		}
		return
	}
	if r.failures.succeed() {
		r.log.Info("active request reads recovered")
		r.notifier.Notify(SeverityInfo, "Ride requests are loading again")
	}

	r.apply(rides)
}

// apply reconciles the displayed set against fetched. Removals are applied
// before additions.
func (r *FeedReconciler) apply(fetched []*entities.Ride) {
	byID := make(map[entities.RideID]*entities.Ride, len(fetched))
	fetchedIDs := make(map[entities.RideID]struct{}, len(fetched))
	for _, ride := range fetched {
		if ride.Status != entities.RideStatusRequested {
			continue
		}
		byID[ride.ID] = ride
		fetchedIDs[ride.ID] = struct{}{}
	}

	r.mu.Lock()
	if !r.enabled || r.paused {
		r.mu.Unlock()
		return
	}
	displayedIDs := make(map[entities.RideID]struct{}, len(r.displayed))
	for id := range r.displayed {
		displayedIDs[id] = struct{}{}
	}
	toRemove, toAdd := Diff(displayedIDs, fetchedIDs)
	if len(toRemove) == 0 && len(toAdd) == 0 {
		r.mu.Unlock()
		return
	}

	for _, id := range toRemove {
		delete(r.displayed, id)
	}
	added := make([]FeedEntry, 0, len(toAdd))
	for _, id := range toAdd {
		entry := FeedEntry{Ride: byID[id], DistanceKm: distanceFrom(r.origin, r.lookup, byID[id].Origin)}
		r.displayed[id] = entry
		added = append(added, entry)
	}
	update := FeedUpdate{Removed: toRemove, Added: added, Feed: r.snapshot()}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"added": len(toAdd), "removed": len(toRemove), "open": len(update.Feed)}).
		Debug("request feed reconciled")
	r.onUpdate(update)
}

func (r *FeedReconciler) clear() {
	r.mu.Lock()
	if len(r.displayed) == 0 {
		r.mu.Unlock()
		return
	}
	removed := make([]entities.RideID, 0, len(r.displayed))
	for id := range r.displayed {
		removed = append(removed, id)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	r.displayed = make(map[entities.RideID]FeedEntry)
	r.mu.Unlock()

	r.onUpdate(FeedUpdate{Removed: removed})
}

// snapshot copies the feed. Caller holds r.mu.
func (r *FeedReconciler) snapshot() []FeedEntry {
	feed := make([]FeedEntry, 0, len(r.displayed))
	for _, e := range r.displayed {
		feed = append(feed, e)
	}
	sort.Slice(feed, func(i, j int) bool { return feed[i].Ride.ID < feed[j].Ride.ID })
	return feed
}

func distanceFrom(origin *entities.Location, lookup PlaceLookup, pickup string) *float64 {
	if origin == nil {
		return nil
	}
	loc, ok := lookup(pickup)
	if !ok {
		return nil
	}
	d := utils.HaversineDistance(origin.Latitude, origin.Longitude, loc.Latitude, loc.Longitude)
	return &d
}

// WaitFor checks the feed until cond holds, ctx ends, or timeout passes.
func (r *FeedReconciler) WaitFor(ctx context.Context, timeout time.Duration, cond func([]FeedEntry) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cond(r.Feed()) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}
