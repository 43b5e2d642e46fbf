// Command demo drives one rider and one driver through a full ride: request,
// accept, start, complete, and rating. It runs against a ledger node's
// gateway, or against an in-process node when no endpoint is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/chain"
	"ridesync/internal/config"
	"ridesync/internal/domain/entities"
	"ridesync/internal/events/broker"
	"ridesync/internal/geocode"
	"ridesync/internal/ledger"
	"ridesync/internal/ledger/httpledger"
	"ridesync/internal/services"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

type options struct {
	endpoint    string
	rider       string
	driver      string
	origin      string
	destination string
	fare        string
	timeout     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.endpoint, "endpoint", "", "ledger gateway URL; empty runs an in-process node")
	flag.StringVar(&opts.rider, "rider", "", "rider account; empty generates one")
	flag.StringVar(&opts.driver, "driver", "", "driver account; empty generates one")
	flag.StringVar(&opts.origin, "from", "San Francisco", "pickup")
	flag.StringVar(&opts.destination, "to", "Palo Alto", "destination")
	flag.StringVar(&opts.fare, "fare", "0.01", "fare in ether")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	flag.Parse()

	if opts.rider == "" {
		opts.rider = utils.GenerateAddress()
	}
	if opts.driver == "" {
		opts.driver = utils.GenerateAddress()
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		logrus.WithError(err).Fatal("failed to open log output")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.WithError(err).Error("demo failed")
		os.Exit(1)
	}
	log.Info("demo completed successfully")
}

// connect returns a client per wallet and the push source both share.
func connect(cfg *config.Config, opts options, log logrus.FieldLogger) (rider, driver ledger.Client, push ledger.Subscriber, closeFn func(), err error) {
	riderWallet := ledger.NewWallet(opts.rider, nil)
	driverWallet := ledger.NewWallet(opts.driver, nil)
	closeFn = func() {}

	if opts.endpoint == "" {
		blockTime := cfg.Ledger.BlockTime
		contract := chain.NewMemoryContract(blockTime, log)
		log.WithField("block_time", blockTime).Info("using in-process ledger node")
		rider, driver, push = contract.Connect(riderWallet), contract.Connect(driverWallet), contract.Events()
	} else {
		r := httpledger.New(opts.endpoint, riderWallet, nil, log)
		rider, driver, push = r, httpledger.New(opts.endpoint, driverWallet, nil, log), r
		log.WithField("endpoint", opts.endpoint).Info("using remote ledger node")
	}

	// A broker, when configured, replaces the node's own event stream.
	relay, err := broker.Open(cfg.Events, log)
	if err != nil {
		log.WithError(err).Warn("event relay unavailable, using the node's stream")
		return rider, driver, push, closeFn, nil
	}
	if relay != nil {
		push = relay
		closeFn = func() { relay.Close() }
	}
	return rider, driver, push, closeFn, nil
}

func newPlaces(cfg *config.Config, log logrus.FieldLogger) (*geocode.Chain, *geocode.Gazetteer) {
	gazetteer := geocode.NewGazetteer()
	var resolvers []geocode.Resolver
	if cfg.Geocode.GoogleAPIKey != "" {
		google, err := geocode.NewGoogle(cfg.Geocode.GoogleAPIKey)
		if err != nil {
			log.WithError(err).Warn("google geocoder disabled")
		} else {
			resolvers = append(resolvers, google)
		}
	}
	resolvers = append(resolvers, gazetteer)
	return geocode.NewChain(cfg.Geocode.Timeout, log, resolvers...), gazetteer
}

func run(ctx context.Context, cfg *config.Config, opts options, log logrus.FieldLogger) error {
	fare, err := utils.ParseEther(opts.fare)
	if err != nil {
		return err
	}

	riderClient, driverClient, push, closeClients, err := connect(cfg, opts, log)
	if err != nil {
		return err
	}
	defer closeClients()

	places, gazetteer := newPlaces(cfg, log)
	pickup, err := places.Locate(ctx, opts.origin)
	if err != nil {
		return fmt.Errorf("locating %q: %w", opts.origin, err)
	}

	notifications := services.NewNotificationService(log)

	// Driver: register, go online, report position at the pickup.
	driver := services.NewDriverSession(cfg, driverClient, push, notifications, nil, log)
	defer driver.Close()
	driver.SetPlaceLookup(gazetteer.Lookup)

	if err := driver.Load(ctx); errors.Is(err, services.ErrNotRegistered) {
		if err := driver.Register(ctx, "John Doe", "Tesla Model 3, Black", "DL12345678"); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if err := driver.SetAvailability(ctx, true); err != nil {
		return err
	}
	if _, err := driver.UpdateLocation(ctx, pickup.Location); err != nil {
		return err
	}
	log.WithField("at", places.Label(ctx, pickup.Location)).Info("driver online")

	// Rider: request the ride.
	rider, err := services.NewRiderSession(cfg, riderClient, push, notifications, log)
	if err != nil {
		return err
	}
	defer rider.Close()
	rider.SetPlaceLookup(gazetteer.Lookup)

	completed := make(chan struct{})
	var once sync.Once
	rider.OnStatusChange(func(c services.StatusChange) {
		if c.To == entities.RideStatusCompleted {
			once.Do(func() { close(completed) })
		}
	})

	log.WithFields(logrus.Fields{
		"from":  opts.origin,
		"to":    opts.destination,
		"quote": utils.FormatEther(uint64(rider.QuoteFare(opts.origin, opts.destination))),
		"fare":  utils.FormatEther(fare),
	}).Info("requesting ride")
	id, err := rider.RequestRide(ctx, opts.origin, opts.destination, entities.Amount(fare))
	if err != nil {
		return err
	}

	// Driver: wait for the request to show in the feed, then run the ride.
	seen := driver.Reconciler().WaitFor(ctx, opts.timeout, func(feed []services.FeedEntry) bool {
		for _, e := range feed {
			if e.Ride.ID == id {
				if e.DistanceKm != nil {
					log.WithField("km", fmt.Sprintf("%.1f", *e.DistanceKm)).Info("request is in the feed")
				}
				return true
			}
		}
		return false
	})
	if !seen {
		return fmt.Errorf("ride %d never reached the driver feed", id)
	}

	if _, err := driver.Accept(ctx, id); err != nil {
		return err
	}
	if _, err := driver.Start(ctx); err != nil {
		return err
	}
	if _, err := driver.Complete(ctx); err != nil {
		return err
	}

	select {
	case <-completed:
	case <-ctx.Done():
		return fmt.Errorf("waiting for the rider to see completion: %w", ctx.Err())
	}

	if _, err := rider.RateDriver(ctx, 5); err != nil {
		return err
	}

	earnings, err := driver.Earnings(ctx)
	if err != nil {
		return err
	}
	history, err := rider.History(ctx)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"ride_id":  id,
		"earnings": utils.FormatEther(uint64(earnings)) + " ETH",
		"history":  history,
	}).Info("ride finished")
	return nil
}
