package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

// DriverSession is one driver client. While the driver is available its
// FeedReconciler shows open requests; once a ride is accepted the feed is
// paused and a RidePoller follows that ride until it ends.
type DriverSession struct {
	actor
	poller  *RidePoller
	feed    *FeedReconciler
	tracker *LocationTracker

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	driver   *entities.Driver
	active   entities.RideID
	observer func(StatusChange)
}

// NewDriverSession wires a session for client. onFeed receives every feed
// change and may be nil, as may push and notifier.
func NewDriverSession(cfg *config.Config, client ledger.Client, push ledger.Subscriber, notifier Notifier, onFeed func(FeedUpdate), log logrus.FieldLogger) *DriverSession {
	a := newActor(client, entities.RoleDriver, cfg.Sync, notifier, logger.Component(log, "driver_session"))
	base, cancel := context.WithCancel(context.Background())
	return &DriverSession{
		actor:   a,
		poller:  NewRidePoller(cfg.Sync, client, push, a.notifier, log),
		feed:    NewFeedReconciler(cfg.Sync, client, push, onFeed, a.notifier, log),
		tracker: NewLocationTracker(client, cfg.Sync.LocationMinMove, log),
		base:    base,
		cancel:  cancel,
	}
}

// SetPlaceLookup resolves pickup text for the feed's distance hints.
func (s *DriverSession) SetPlaceLookup(lookup PlaceLookup) {
	s.feed.SetPlaceLookup(lookup)
}

// Load reads the driver record and restores the session: the feed runs if
// the driver is available, and a ride the driver already accepted is
// tracked again. It returns ErrNotRegistered for unknown accounts.
func (s *DriverSession) Load(ctx context.Context) error {
	driver, err := s.client.ReadDriver(ctx, s.client.Account())
	if errors.Is(err, ledger.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.driver = driver
	s.mu.Unlock()
	if driver.Location != (entities.Location{}) {
		s.tracker.Seed(driver.Location)
		s.feed.SetOrigin(driver.Location)
	}

	active, err := s.findActiveRide(ctx)
	if err != nil {
		return err
	}
	if active != 0 {
		s.feed.Pause()
		if err := s.trackActive(active); err != nil {
			return err
		}
	}

	if driver.IsAvailable {
		s.feed.Enable(s.base)
	}
	return nil
}

// findActiveRide returns the accepted or started ride assigned to this
// driver, if any.
func (s *DriverSession) findActiveRide(ctx context.Context) (entities.RideID, error) {
	ids, err := s.client.ReadAccountRides(ctx, s.client.Account())
	if err != nil {
		return 0, err
	}
	for i := len(ids) - 1; i >= 0; i-- {
		ride, err := s.readRide(ctx, ids[i])
		if err != nil {
			return 0, err
		}
		if ride.Status != entities.RideStatusAccepted && ride.Status != entities.RideStatusStarted {
			continue
		}
		if utils.NormalizeAddress(ride.Driver) == utils.NormalizeAddress(s.client.Account()) {
			return ride.ID, nil
		}
	}
	return 0, nil
}

// Register submits the driver registration and loads the new record.
func (s *DriverSession) Register(ctx context.Context, name, vehicleInfo, licenseNumber string) error {
	if _, err := s.client.SubmitRegistration(ctx, name, vehicleInfo, licenseNumber); err != nil {
		s.reportFailure("register", err)
		return err
	}
	s.notifier.Notify(SeveritySuccess, fmt.Sprintf("Driver %s registered", name))
	return s.Load(ctx)
}

// SetAvailability toggles availability on the ledger, then starts or stops
// the feed. Going unavailable clears the feed before returning.
func (s *DriverSession) SetAvailability(ctx context.Context, available bool) error {
	if s.Driver() == nil {
		return ErrNotRegistered
	}
	if _, err := s.client.SubmitAvailability(ctx, available); err != nil {
		s.reportFailure("availability", err)
		return err
	}

	s.mu.Lock()
	s.driver.IsAvailable = available
	s.mu.Unlock()

	if available {
		s.feed.Enable(s.base)
		s.notifier.Notify(SeveritySuccess, "You are now available for rides")
	} else {
		s.feed.Disable()
		s.notifier.Notify(SeverityInfo, "You are now offline")
	}
	return nil
}

// UpdateLocation reports the driver's position. Small moves are dropped.
func (s *DriverSession) UpdateLocation(ctx context.Context, loc entities.Location) (bool, error) {
	if s.Driver() == nil {
		return false, ErrNotRegistered
	}
	sent, err := s.tracker.Report(ctx, loc)
	if err != nil {
		s.reportFailure("location", err)
		return false, err
	}
	if sent {
		s.feed.SetOrigin(loc)
		s.mu.Lock()
		s.driver.Location = loc
		s.mu.Unlock()
	}
	return sent, nil
}

// Accept takes an open request. On success the feed pauses and the ride is
// tracked until it reaches a terminal state.
func (s *DriverSession) Accept(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	if s.Driver() == nil {
		return nil, ErrNotRegistered
	}
	if s.ActiveRide() != 0 {
		return nil, ErrActiveRide
	}
	receipt, err := s.perform(ctx, id, entities.ActionAccept, s.client.SubmitAccept)
	if err != nil {
		s.feed.Kick()
		return nil, err
	}

	s.feed.Pause()
	if err := s.trackActive(id); err != nil {
		return receipt, err
	}
	s.notifier.Notify(SeveritySuccess, fmt.Sprintf("Ride %d accepted", id))
	return receipt, nil
}

// Decline closes an open request without taking it.
func (s *DriverSession) Decline(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
	if s.Driver() == nil {
		return nil, ErrNotRegistered
	}
	receipt, err := s.perform(ctx, id, entities.ActionDecline, s.client.SubmitDecline)
	s.feed.Kick()
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(SeverityInfo, fmt.Sprintf("Ride %d declined", id))
	return receipt, nil
}

// Start begins the active ride.
func (s *DriverSession) Start(ctx context.Context) (*ledger.Receipt, error) {
	return s.advance(ctx, entities.ActionStart, s.client.SubmitStart)
}

// Complete ends the active ride; the fare is credited by the ledger.
func (s *DriverSession) Complete(ctx context.Context) (*ledger.Receipt, error) {
	return s.advance(ctx, entities.ActionComplete, s.client.SubmitComplete)
}

func (s *DriverSession) advance(ctx context.Context, action entities.Action, submit func(context.Context, entities.RideID) (*ledger.Receipt, error)) (*ledger.Receipt, error) {
	id := s.ActiveRide()
	if id == 0 {
		return nil, ErrNoActiveRide
	}
	receipt, err := s.perform(ctx, id, action, submit)
	if err != nil {
		return nil, err
	}
	s.poller.Poll()
	return receipt, nil
}

func (s *DriverSession) trackActive(id entities.RideID) error {
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return s.poller.Track(s.base, id, s.handle)
}

// handle runs on the poller goroutine. A terminal status frees the driver
// and brings the feed back.
func (s *DriverSession) handle(change StatusChange) {
	s.mu.Lock()
	observer := s.observer
	if change.To.IsTerminal() && s.active == change.RideID {
		s.active = 0
	}
	s.mu.Unlock()

	if change.To.IsTerminal() {
		s.feed.Resume()
	}
	if observer != nil {
		observer(change)
	}
}

// OnStatusChange registers fn to receive every change of the active ride.
func (s *DriverSession) OnStatusChange(fn func(StatusChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Feed returns the open requests currently displayed.
func (s *DriverSession) Feed() []FeedEntry {
	return s.feed.Feed()
}

// Reconciler exposes the feed reconciler, e.g. to force a Refresh.
func (s *DriverSession) Reconciler() *FeedReconciler {
	return s.feed
}

func (s *DriverSession) Poller() *RidePoller {
	return s.poller
}

// ActiveRide returns the ride the driver is serving, or 0.
func (s *DriverSession) ActiveRide() entities.RideID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Driver returns the cached driver record, or nil before Load succeeds.
func (s *DriverSession) Driver() *entities.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Clone()
}

// Earnings re-reads the driver's accumulated fares from the ledger.
func (s *DriverSession) Earnings(ctx context.Context) (entities.Amount, error) {
	driver, err := s.client.ReadDriver(ctx, s.client.Account())
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.driver = driver
	s.mu.Unlock()
	return driver.TotalEarnings, nil
}

// Close ends the session and every goroutine it started.
func (s *DriverSession) Close() {
	s.cancel()
	s.feed.Disable()
	s.poller.Stop()
	s.close()
}
