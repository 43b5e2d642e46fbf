// Package chain is an in-process stand-in for the ride contract. It enforces
// the same preconditions, reverts with a reason when one fails, mines one
// transaction per block after a configurable block time, and emits the
// contract's events.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/internal/repository"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

// effect is what a successful transaction leaves behind.
type effect struct {
	rideID entities.RideID
	events []ledger.Event
}

type minedTx struct {
	receipt *ledger.Receipt
	err     error
}

// Contract holds ledger state behind the repository ports.
//
// Go Learning Note — Lock Handoff:
// mu guards state; pubMu orders event publication. A mined transaction takes
// pubMu before releasing mu, so events leave in block order while readers
// are already free to see the new state.
type Contract struct {
	store     repository.Store
	rides     repository.RideRepository
	drivers   repository.DriverRepository
	bus       *EventBus
	log       logrus.FieldLogger
	blockTime time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	pubMu sync.Mutex
	block uint64
}

func NewContract(
	store repository.Store,
	bus *EventBus,
	blockTime time.Duration,
	log logrus.FieldLogger,
) *Contract {
	return &Contract{
		store:     store,
		rides:     store.Rides(),
		drivers:   store.Drivers(),
		bus:       bus,
		log:       logger.Component(log, "contract"),
		blockTime: blockTime,
		now:       time.Now,
	}
}

// Events exposes the contract's event stream.
func (c *Contract) Events() *EventBus {
	return c.bus
}

// BlockNumber returns the height of the last mined block.
func (c *Contract) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block
}

// execute mines apply after one block time. Once submitted a transaction
// cannot be withdrawn: if ctx ends first the caller stops waiting, but the
// transaction is still mined.
func (c *Contract) execute(ctx context.Context, from, method string, apply func(now time.Time) (effect, error)) (*ledger.Receipt, error) {
	done := make(chan minedTx, 1)
	go func() {
		if c.blockTime > 0 {
			time.Sleep(c.blockTime)
		}
		receipt, err := c.mine(from, method, apply)
		done <- minedTx{receipt: receipt, err: err}
	}()

	select {
	case res := <-done:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: waiting for receipt: %w", method, ctx.Err())
	}
}

func (c *Contract) mine(from, method string, apply func(now time.Time) (effect, error)) (*ledger.Receipt, error) {
	entry := c.log.WithFields(logrus.Fields{"method": method, "from": utils.ShortAddress(from)})

	c.mu.Lock()
	now := c.now()
	eff, err := apply(now)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, ledger.ErrTransactionReverted) {
			entry.WithField("reason", ledger.RevertReason(err)).Warn("transaction reverted")
		} else {
			entry.WithError(err).Error("transaction failed")
		}
		return nil, err
	}

	c.block++
	receipt := &ledger.Receipt{
		TxHash:      utils.GenerateTxHash(),
		BlockNumber: c.block,
		RideID:      eff.rideID,
		MinedAt:     now,
	}
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	entry.WithFields(logrus.Fields{"block": receipt.BlockNumber, "tx": receipt.TxHash, "ride_id": eff.rideID}).
		Info("transaction mined")

	for _, e := range eff.events {
		e.Account = from
		e.BlockNumber = receipt.BlockNumber
		e.TxHash = receipt.TxHash
		e.Timestamp = now
		c.bus.Publish(context.Background(), e)
	}
	return receipt, nil
}

func rideEvent(ride *entities.Ride) ledger.Event {
	status := ride.Status
	return ledger.Event{
		Type:   ledger.EventForStatus(status),
		RideID: ride.ID,
		Status: &status,
	}
}

// RequestRide opens a ride in Requested.
func (c *Contract) RequestRide(ctx context.Context, from, origin, destination string, fare entities.Amount) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)

	return c.execute(ctx, from, "requestRide", func(now time.Time) (effect, error) {
		switch {
		case origin == "":
			return effect{}, ledger.Revert("origin is required")
		case destination == "":
			return effect{}, ledger.Revert("destination is required")
		case fare == 0:
			return effect{}, ledger.Revert("fare must be positive")
		}

		ride := entities.NewRide(from, origin, destination, fare, now)
		if err := c.rides.Create(context.Background(), ride); err != nil {
			return effect{}, err
		}
		return effect{rideID: ride.ID, events: []ledger.Event{rideEvent(ride)}}, nil
	})
}

// AcceptRide assigns a registered, available driver other than the rider.
func (c *Contract) AcceptRide(ctx context.Context, from string, id entities.RideID) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	return c.execute(ctx, from, "acceptRide", func(now time.Time) (effect, error) {
		ride, err := c.openRideFor(from, id)
		if err != nil {
			return effect{}, err
		}
		driver, err := c.registeredDriver(from)
		if err != nil {
			return effect{}, err
		}
		if !driver.IsAvailable {
			return effect{}, ledger.Revert("driver is not available")
		}
		if err := ride.Accept(from, now); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}
		if err := c.rides.Update(context.Background(), ride); err != nil {
			return effect{}, err
		}
		return effect{rideID: id, events: []ledger.Event{rideEvent(ride)}}, nil
	})
}

// DeclineRide closes an open ride. Any registered driver other than the
// rider may decline a ride they can see in the open feed.
func (c *Contract) DeclineRide(ctx context.Context, from string, id entities.RideID) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	return c.execute(ctx, from, "declineRide", func(now time.Time) (effect, error) {
		ride, err := c.openRideFor(from, id)
		if err != nil {
			return effect{}, err
		}
		if _, err := c.registeredDriver(from); err != nil {
			return effect{}, err
		}
		if err := ride.Decline(now); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}
		if err := c.rides.Update(context.Background(), ride); err != nil {
			return effect{}, err
		}
		return effect{rideID: id, events: []ledger.Event{rideEvent(ride)}}, nil
	})
}

func (c *Contract) StartRide(ctx context.Context, from string, id entities.RideID) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	return c.execute(ctx, from, "startRide", func(now time.Time) (effect, error) {
		ride, err := c.assignedRide(from, id, entities.RideStatusAccepted)
		if err != nil {
			return effect{}, err
		}
		if err := ride.Start(now); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}
		if err := c.rides.Update(context.Background(), ride); err != nil {
			return effect{}, err
		}
		return effect{rideID: id, events: []ledger.Event{rideEvent(ride)}}, nil
	})
}

// CompleteRide finishes the ride and credits the fare to the driver.
func (c *Contract) CompleteRide(ctx context.Context, from string, id entities.RideID) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	return c.execute(ctx, from, "completeRide", func(now time.Time) (effect, error) {
		ride, err := c.assignedRide(from, id, entities.RideStatusStarted)
		if err != nil {
			return effect{}, err
		}
		driver, err := c.registeredDriver(from)
		if err != nil {
			return effect{}, err
		}
		if err := ride.Complete(now); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}
		driver.Credit(ride.Fare, now)

		if err := c.commit(ride, driver); err != nil {
			return effect{}, err
		}
		return effect{rideID: id, events: []ledger.Event{rideEvent(ride)}}, nil
	})
}

// RateDriver lets the rider rate the driver once after completion.
func (c *Contract) RateDriver(ctx context.Context, from string, id entities.RideID, rating uint8) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	return c.execute(ctx, from, "rateDriver", func(now time.Time) (effect, error) {
		ride, err := c.rideForWrite(id)
		if err != nil {
			return effect{}, err
		}
		if ride.Rider != from {
			return effect{}, ledger.Revert("only the rider can rate this ride")
		}
		if err := ride.Rate(rating, now); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}
		driver, err := c.registeredDriver(ride.Driver)
		if err != nil {
			return effect{}, err
		}
		if err := driver.AddRating(rating, now); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}

		if err := c.commit(ride, driver); err != nil {
			return effect{}, err
		}
		return effect{rideID: id, events: []ledger.Event{{Type: ledger.EventRideRated, RideID: id}}}, nil
	})
}

func (c *Contract) RegisterDriver(ctx context.Context, from, name, vehicleInfo, licenseNumber string) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	name = strings.TrimSpace(name)
	return c.execute(ctx, from, "registerDriver", func(now time.Time) (effect, error) {
		if name == "" {
			return effect{}, ledger.Revert("name is required")
		}
		driver := entities.NewDriver(from, name, strings.TrimSpace(vehicleInfo), strings.TrimSpace(licenseNumber), now)
		err := c.drivers.Create(context.Background(), driver)
		if errors.Is(err, repository.ErrDriverExists) {
			return effect{}, ledger.Revert("driver already registered")
		}
		if err != nil {
			return effect{}, err
		}
		return effect{events: []ledger.Event{{Type: ledger.EventDriverRegistered}}}, nil
	})
}

func (c *Contract) SetDriverAvailability(ctx context.Context, from string, available bool) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	return c.execute(ctx, from, "setDriverAvailability", func(now time.Time) (effect, error) {
		driver, err := c.registeredDriver(from)
		if err != nil {
			return effect{}, err
		}
		driver.SetAvailability(available, now)
		if err := c.drivers.Update(context.Background(), driver); err != nil {
			return effect{}, err
		}
		return effect{events: []ledger.Event{{Type: ledger.EventDriverAvailabilityUpdated}}}, nil
	})
}

// UpdateDriverLocation takes micro-degree coordinates, the contract's
// integer encoding.
func (c *Contract) UpdateDriverLocation(ctx context.Context, from string, latMicro, lngMicro int64) (*ledger.Receipt, error) {
	from = utils.NormalizeAddress(from)
	loc := entities.LocationFromMicro(latMicro, lngMicro)
	return c.execute(ctx, from, "updateDriverLocation", func(now time.Time) (effect, error) {
		if err := loc.Validate(); err != nil {
			return effect{}, ledger.Revert(err.Error())
		}
		driver, err := c.registeredDriver(from)
		if err != nil {
			return effect{}, err
		}
		driver.UpdateLocation(loc, now)
		if err := c.drivers.Update(context.Background(), driver); err != nil {
			return effect{}, err
		}
		return effect{events: []ledger.Event{{Type: ledger.EventDriverLocationUpdated}}}, nil
	})
}

// GetRide reads a ride. Storage failures surface as transient reads.
func (c *Contract) GetRide(ctx context.Context, id entities.RideID) (*entities.Ride, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ride, err := c.rides.GetByID(ctx, id)
	if errors.Is(err, repository.ErrRideNotFound) {
		return nil, fmt.Errorf("ride %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, ledger.Transient(err)
	}
	return ride, nil
}

// ActiveRequests returns every ride still in Requested.
func (c *Contract) ActiveRequests(ctx context.Context) ([]*entities.Ride, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rides, err := c.rides.ListByStatus(ctx, entities.RideStatusRequested)
	if err != nil {
		return nil, ledger.Transient(err)
	}
	return rides, nil
}

func (c *Contract) GetDriver(ctx context.Context, address string) (*entities.Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	driver, err := c.drivers.GetByAddress(ctx, utils.NormalizeAddress(address))
	if errors.Is(err, repository.ErrDriverNotFound) {
		return nil, fmt.Errorf("driver %s: %w", utils.ShortAddress(address), ledger.ErrNotFound)
	}
	if err != nil {
		return nil, ledger.Transient(err)
	}
	return driver, nil
}

// AvailableDrivers lists drivers currently accepting rides.
func (c *Contract) AvailableDrivers(ctx context.Context) ([]*entities.Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	drivers, err := c.drivers.ListAvailable(ctx)
	if err != nil {
		return nil, ledger.Transient(err)
	}
	return drivers, nil
}

// AccountRides returns the IDs of every ride address took part in.
func (c *Contract) AccountRides(ctx context.Context, address string) ([]entities.RideID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rides, err := c.rides.ListByParticipant(ctx, utils.NormalizeAddress(address))
	if err != nil {
		return nil, ledger.Transient(err)
	}
	ids := make([]entities.RideID, 0, len(rides))
	for _, r := range rides {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (c *Contract) RideCount(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rides.Count(ctx)
}

// commit stores a ride and its driver together; a transaction that touches
// both never leaves one written without the other.
func (c *Contract) commit(ride *entities.Ride, driver *entities.Driver) error {
	return c.store.Atomically(context.Background(), func(rides repository.RideRepository, drivers repository.DriverRepository) error {
		if err := rides.Update(context.Background(), ride); err != nil {
			return err
		}
		return drivers.Update(context.Background(), driver)
	})
}

// rideForWrite loads a ride inside a transaction. A missing ride reverts.
func (c *Contract) rideForWrite(id entities.RideID) (*entities.Ride, error) {
	ride, err := c.rides.GetByID(context.Background(), id)
	if errors.Is(err, repository.ErrRideNotFound) {
		return nil, ledger.Revert("ride does not exist")
	}
	return ride, err
}

func (c *Contract) openRideFor(driver string, id entities.RideID) (*entities.Ride, error) {
	ride, err := c.rideForWrite(id)
	if err != nil {
		return nil, err
	}
	if ride.Status != entities.RideStatusRequested {
		return nil, ledger.Revert("ride is not open")
	}
	if ride.Rider == driver {
		return nil, ledger.Revert("rider cannot act as driver on own ride")
	}
	return ride, nil
}

func (c *Contract) assignedRide(driver string, id entities.RideID, want entities.RideStatus) (*entities.Ride, error) {
	ride, err := c.rideForWrite(id)
	if err != nil {
		return nil, err
	}
	if ride.Status != want {
		return nil, ledger.Revert(fmt.Sprintf("ride is %s, expected %s", ride.Status, want))
	}
	if ride.Driver != driver {
		return nil, ledger.Revert("caller is not the assigned driver")
	}
	return ride, nil
}

func (c *Contract) registeredDriver(address string) (*entities.Driver, error) {
	driver, err := c.drivers.GetByAddress(context.Background(), address)
	if errors.Is(err, repository.ErrDriverNotFound) {
		return nil, ledger.Revert("caller is not a registered driver")
	}
	return driver, err
}
