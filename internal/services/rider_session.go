package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

// RiderSession is one rider client: it requests rides, follows the current
// ride through a RidePoller, and rates the driver once the ride completes.
type RiderSession struct {
	actor
	poller      *RidePoller
	fares       *utils.FareCalculator
	defaultFare entities.Amount
	lookup      PlaceLookup

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	current  entities.RideID
	observer func(StatusChange)
}

// NewRiderSession wires a session for client. push and notifier may be nil.
// It fails only when the pricing settings cannot be parsed.
func NewRiderSession(cfg *config.Config, client ledger.Client, push ledger.Subscriber, notifier Notifier, log logrus.FieldLogger) (*RiderSession, error) {
	fares, defaultFare, err := parsePricing(cfg.Pricing)
	if err != nil {
		return nil, err
	}

	a := newActor(client, entities.RoleRider, cfg.Sync, notifier, logger.Component(log, "rider_session"))
	base, cancel := context.WithCancel(context.Background())
	return &RiderSession{
		actor:       a,
		poller:      NewRidePoller(cfg.Sync, client, push, a.notifier, log),
		fares:       fares,
		defaultFare: defaultFare,
		lookup:      CoordinatesOnly,
		base:        base,
		cancel:      cancel,
	}, nil
}

func parsePricing(p config.PricingConfig) (*utils.FareCalculator, entities.Amount, error) {
	var values [4]uint64
	for i, s := range []string{p.BaseFare, p.PerKmRate, p.MinimumFare, p.DefaultFare} {
		v, err := utils.ParseEther(s)
		if err != nil {
			return nil, 0, fmt.Errorf("pricing: %w", err)
		}
		values[i] = v
	}
	return utils.NewFareCalculator(values[0], values[1], values[2]), entities.Amount(values[3]), nil
}

// OnStatusChange registers fn to receive every change of the current ride.
func (s *RiderSession) OnStatusChange(fn func(StatusChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// SetPlaceLookup changes how QuoteFare resolves place text. nil restores
// CoordinatesOnly.
func (s *RiderSession) SetPlaceLookup(lookup PlaceLookup) {
	if lookup == nil {
		lookup = CoordinatesOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = lookup
}

// QuoteFare suggests a fare. When both ends resolve to coordinates the fare
// follows the straight-line distance; otherwise the configured default
// applies.
func (s *RiderSession) QuoteFare(origin, destination string) entities.Amount {
	s.mu.Lock()
	lookup := s.lookup
	s.mu.Unlock()

	from, ok1 := lookup(origin)
	to, ok2 := lookup(destination)
	if !ok1 || !ok2 {
		return s.defaultFare
	}
	km := utils.HaversineDistance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return entities.Amount(s.fares.CalculateFare(km))
}

// RequestRide submits a new ride and starts tracking it. A zero fare takes
// the quoted fare. Only one ride can be in progress per session.
func (s *RiderSession) RequestRide(ctx context.Context, origin, destination string, fare entities.Amount) (entities.RideID, error) {
	if s.poller.Tracking() {
		return 0, ErrActiveRide
	}
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if fare == 0 {
		fare = s.QuoteFare(origin, destination)
	}

	receipt, err := s.client.SubmitRideRequest(ctx, origin, destination, fare)
	if err != nil {
		s.reportFailure("request", err)
		return 0, err
	}

	s.mu.Lock()
	s.current = receipt.RideID
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"ride_id": receipt.RideID,
		"fare":    utils.FormatEther(uint64(fare)),
		"tx":      receipt.TxHash,
	}).Info("ride requested")

	if err := s.poller.Track(s.base, receipt.RideID, s.handle); err != nil {
		return receipt.RideID, err
	}
	return receipt.RideID, nil
}

// Resume tracks an existing ride, e.g. after the client restarted.
func (s *RiderSession) Resume(id entities.RideID) error {
	if err := s.poller.Track(s.base, id, s.handle); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return nil
}

func (s *RiderSession) handle(change StatusChange) {
	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(change)
	}
}

// RateDriver rates the driver of the current ride. The ride must be
// completed and not yet rated.
func (s *RiderSession) RateDriver(ctx context.Context, rating uint8) (*ledger.Receipt, error) {
	id := s.CurrentRide()
	if id == 0 {
		return nil, ErrNoActiveRide
	}
	receipt, err := s.perform(ctx, id, entities.ActionRate, func(ctx context.Context, id entities.RideID) (*ledger.Receipt, error) {
		return s.client.SubmitRating(ctx, id, rating)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(SeveritySuccess, fmt.Sprintf("Thanks! You rated ride %d with %d stars", id, rating))
	return receipt, nil
}

// CurrentRide returns the ride this session follows, or 0.
func (s *RiderSession) CurrentRide() entities.RideID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Status returns the last status the poller emitted for the current ride.
func (s *RiderSession) Status() (entities.RideStatus, bool) {
	return s.poller.LastStatus()
}

// Poller exposes the underlying poller, e.g. to wait on Done.
func (s *RiderSession) Poller() *RidePoller {
	return s.poller
}

// History lists the rides this account has taken part in.
func (s *RiderSession) History(ctx context.Context) ([]entities.RideID, error) {
	return s.client.ReadAccountRides(ctx, s.client.Account())
}

// Reset stops tracking and forgets the current ride. Rides already on the
// ledger are unaffected.
func (s *RiderSession) Reset() {
	s.poller.Stop()
	s.mu.Lock()
	s.current = 0
	s.mu.Unlock()
}

// Close ends the session and every goroutine it started.
func (s *RiderSession) Close() {
	s.cancel()
	s.poller.Stop()
	s.close()
}
