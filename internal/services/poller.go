package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
)

// StatusChange is one observed step of a ride's lifecycle. The first change
// emitted for a ride is Requested→Requested. Backfilled marks states the
// poller never saw directly but that the ride must have passed through.
type StatusChange struct {
	RideID     entities.RideID
	From       entities.RideStatus
	To         entities.RideStatus
	Backfilled bool
	Ride       *entities.Ride
	ObservedAt time.Time
}

// RidePoller follows a single ride on the ledger and reports each status
// transition exactly once, in lifecycle order.
//
// Go Learning Note — Owning a Goroutine:
// Track starts one goroutine and Stop ends it. The done channel lets Stop
// wait until the goroutine has really exited, so no read can happen after
// Stop returns.
type RidePoller struct {
	cfg      config.SyncConfig
	reader   ledger.Reader
	push     ledger.Subscriber
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time

	mu       sync.Mutex
	rideID   entities.RideID
	last     entities.RideStatus
	seen     bool
	ride     *entities.Ride
	err      error
	failures failureTracker
	cancel   context.CancelFunc
	done     chan struct{}
	kick     chan struct{}
}

// NewRidePoller builds an idle poller. push and notifier may be nil.
func NewRidePoller(cfg config.SyncConfig, reader ledger.Reader, push ledger.Subscriber, notifier Notifier, log logrus.FieldLogger) *RidePoller {
	if notifier == nil {
		notifier = nopNotifier()
	}
	closed := make(chan struct{})
	close(closed)
	return &RidePoller{
		cfg:      cfg,
		reader:   reader,
		push:     push,
		notifier: notifier,
		log:      logger.Component(log, "ride_poller"),
		now:      time.Now,
		done:     closed,
		kick:     newKick(),
	}
}

// Track starts following id, replacing whatever was tracked before. handler
// runs on the polling goroutine, one change at a time, and must not call Stop.
func (p *RidePoller) Track(ctx context.Context, id entities.RideID, handler func(StatusChange)) error {
	if id == 0 {
		return ErrInvalidRideID
	}
	if handler == nil {
		handler = func(StatusChange) {}
	}
	p.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.rideID = id
	p.last = entities.RideStatusRequested
	p.seen = false
	p.ride = nil
	p.err = nil
	p.failures = failureTracker{max: p.cfg.MaxReadFailures}
	p.cancel = cancel
	p.done = done
	kick := newKick()
	p.kick = kick
	p.mu.Unlock()

	p.subscribe(loopCtx, id, kick)

	p.log.WithField("ride_id", id).Info("tracking ride")
	go func() {
		defer close(done)
		defer cancel()
		runLoop(loopCtx, p.cfg.RideInterval, kick, func(ctx context.Context) bool {
			return p.tick(ctx, id, handler)
		})
	}()
	return nil
}

// subscribe wires the optional push stream. Events only trigger an early
// read; their payload is never trusted.
func (p *RidePoller) subscribe(ctx context.Context, id entities.RideID, kick chan<- struct{}) {
	if p.push == nil {
		return
	}
	events, err := p.push.Subscribe(ctx, ledger.RideStatusEvents...)
	if err != nil {
		p.log.WithError(err).Warn("event subscription unavailable, polling only")
		return
	}
	go func() {
		for e := range events {
			if e.RideID == id {
				poke(kick)
			}
		}
	}()
}

// Stop cancels tracking and waits for the polling goroutine to exit.
func (p *RidePoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Poll asks for an immediate read, for example right after the client's own
// transaction was mined.
func (p *RidePoller) Poll() {
	p.mu.Lock()
	kick := p.kick
	p.mu.Unlock()
	poke(kick)
}

// Tracking reports whether a tracking run is in progress.
func (p *RidePoller) Tracking() bool {
	select {
	case <-p.Done():
		return false
	default:
		return true
	}
}

// Done is closed once the current tracking run has ended.
func (p *RidePoller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err returns the error that ended tracking, if any.
func (p *RidePoller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// LastStatus returns the last emitted status. ok is false before the first
// successful read.
func (p *RidePoller) LastStatus() (status entities.RideStatus, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.seen
}

// Ride returns the most recent snapshot read from the ledger.
func (p *RidePoller) Ride() *entities.Ride {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ride.Clone()
}

func (p *RidePoller) tick(ctx context.Context, id entities.RideID, handler func(StatusChange)) bool {
	entry := p.log.WithField("ride_id", id)

	readCtx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	ride, err := p.reader.ReadRide(readCtx, id)
	cancel()

	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ledger.ErrNotFound) {
		entry.WithError(err).Error("tracked ride not found, stopping")
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		p.notifier.Notify(SeverityError, fmt.Sprintf("Ride %d not found on the ledger", id))
		return false
	}
	if err != nil {
		entry.WithError(err).Warn("ride read failed, retrying next tick")
		p.mu.Lock()
		escalate := p.failures.fail()
		p.mu.Unlock()
		if escalate {
			p.notifier.Notify(SeverityError, fmt.Sprintf("Unable to reach the ledger for ride %d", id))
		}
		return true
	}

	p.mu.Lock()
	recovered := p.failures.succeed()
	changes := p.observe(entry, ride)
	terminal := p.last.IsTerminal()
	p.mu.Unlock()

	if recovered {
		p.notifier.Notify(SeverityInfo, "Connection to the ledger restored")
	}
	for _, c := range changes {
		if !c.Backfilled || c.To != entities.RideStatusRequested {
			severity, msg := statusMessage(ride, c.To)
			p.notifier.Notify(severity, msg)
		}
		handler(c)
	}

	// Only an emitted terminal status ends tracking. An ignored snapshot
	// leaves the ride where it was and polling continues.
	if terminal {
		entry.WithField("status", ride.Status).Info("ride reached a terminal state, stopping")
		return false
	}
	return true
}

// observe turns one snapshot into the changes not yet emitted. Caller holds
// p.mu.
func (p *RidePoller) observe(entry logrus.FieldLogger, ride *entities.Ride) []StatusChange {
	if !ride.Status.IsValid() {
		entry.WithField("status", ride.Status).Warn("ignoring unknown ride status")
		return nil
	}

	path, ok := entities.PathBetween(p.last, ride.Status)
	if !ok {
		entry.WithFields(logrus.Fields{"last": p.last, "observed": ride.Status}).
			Warn("ignoring status that does not follow the last observed one")
		return nil
	}

	now := p.now()
	var changes []StatusChange
	if !p.seen {
		changes = append(changes, StatusChange{
			RideID:     ride.ID,
			From:       entities.RideStatusRequested,
			To:         entities.RideStatusRequested,
			Backfilled: len(path) > 0,
			Ride:       ride,
			ObservedAt: now,
		})
		p.seen = true
	}

	prev := p.last
	for i, s := range path {
		changes = append(changes, StatusChange{
			RideID:     ride.ID,
			From:       prev,
			To:         s,
			Backfilled: i < len(path)-1,
			Ride:       ride,
			ObservedAt: now,
		})
		prev = s
	}

	p.last = ride.Status
	p.ride = ride
	return changes
}
