package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
	"ridesync/pkg/logger"
	"ridesync/pkg/utils"
)

// LocationTracker publishes a driver's position to the ledger, skipping
// fixes that moved less than minMove metres since the last one sent. Every
// fix costs a transaction, so jitter is dropped client-side.
type LocationTracker struct {
	writer  ledger.Writer
	minMove float64
	log     logrus.FieldLogger

	mu   sync.Mutex
	last *entities.Location
}

func NewLocationTracker(writer ledger.Writer, minMoveMetres float64, log logrus.FieldLogger) *LocationTracker {
	return &LocationTracker{
		writer:  writer,
		minMove: minMoveMetres,
		log:     logger.Component(log, "location_tracker"),
	}
}

// Report sends loc unless it is within minMove of the last sent fix. sent is
// false when the fix was dropped.
func (t *LocationTracker) Report(ctx context.Context, loc entities.Location) (sent bool, err error) {
	if err := loc.Validate(); err != nil {
		return false, err
	}

	t.mu.Lock()
	last := t.last
	t.mu.Unlock()

	if last != nil {
		moved := utils.HaversineDistance(last.Latitude, last.Longitude, loc.Latitude, loc.Longitude) * 1000
		if moved < t.minMove {
			t.log.WithField("moved_m", moved).Debug("location change below threshold, skipped")
			return false, nil
		}
	}

	if _, err := t.writer.SubmitLocation(ctx, loc); err != nil {
		return false, err
	}

	t.mu.Lock()
	t.last = &loc
	t.mu.Unlock()
	return true, nil
}

// Last returns the most recent fix accepted by the ledger.
func (t *LocationTracker) Last() (entities.Location, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return entities.Location{}, false
	}
	return *t.last, true
}

// Seed sets the last known fix without submitting, e.g. from a driver record.
func (t *LocationTracker) Seed(loc entities.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &loc
}

// PlaceLookup turns ride location text into coordinates. ok is false when
// the text names nothing the lookup knows.
type PlaceLookup func(text string) (loc entities.Location, ok bool)

// CoordinatesOnly understands raw "lat, lng" text and nothing else.
func CoordinatesOnly(text string) (entities.Location, bool) {
	loc, err := entities.ParseLocation(text)
	return loc, err == nil
}
