// Package geocode turns place text into coordinates and back. Labels are
// best effort: ride origins and destinations are free text on the ledger,
// so a failed lookup only costs a nicer name, never a ride.
package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/domain/entities"
	"ridesync/pkg/logger"
)

var ErrNoMatch = errors.New("no matching place")

// Place is a named point.
type Place struct {
	Name     string            `json:"name"`
	Location entities.Location `json:"location"`
}

// Resolver is one geocoding source.
type Resolver interface {
	Search(ctx context.Context, query string) (Place, error)
	Reverse(ctx context.Context, loc entities.Location) (Place, error)
}

// Chain asks each resolver in order and degrades to raw coordinates when
// all of them fail.
type Chain struct {
	resolvers []Resolver
	timeout   time.Duration
	log       logrus.FieldLogger
}

// NewChain tries resolvers in the given order. timeout bounds each attempt;
// zero means no per-attempt bound.
func NewChain(timeout time.Duration, log logrus.FieldLogger, resolvers ...Resolver) *Chain {
	return &Chain{
		resolvers: resolvers,
		timeout:   timeout,
		log:       logger.Component(log, "geocode"),
	}
}

func (c *Chain) attempt(ctx context.Context, fn func(context.Context) (Place, error)) (Place, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return fn(ctx)
}

// Locate resolves query. Raw "lat, lng" text always resolves to itself.
func (c *Chain) Locate(ctx context.Context, query string) (Place, error) {
	if loc, err := entities.ParseLocation(query); err == nil {
		return Place{Name: loc.String(), Location: loc}, nil
	}

	for _, r := range c.resolvers {
		place, err := c.attempt(ctx, func(ctx context.Context) (Place, error) {
			return r.Search(ctx, query)
		})
		if err == nil {
			return place, nil
		}
		if !errors.Is(err, ErrNoMatch) {
			c.log.WithError(err).WithField("query", query).Debug("search failed")
		}
	}
	return Place{}, ErrNoMatch
}

// Label names loc, falling back to its "lat, lng" form.
func (c *Chain) Label(ctx context.Context, loc entities.Location) string {
	for _, r := range c.resolvers {
		place, err := c.attempt(ctx, func(ctx context.Context) (Place, error) {
			return r.Reverse(ctx, loc)
		})
		if err == nil && place.Name != "" {
			return place.Name
		}
		if err != nil && !errors.Is(err, ErrNoMatch) {
			c.log.WithError(err).WithField("location", loc.String()).Debug("reverse lookup failed")
		}
	}
	return loc.String()
}
