package entities

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MicroDegrees is the fixed-point scale used when a coordinate is stored on
// the ledger as an integer.
const MicroDegrees = 1_000_000

var ErrInvalidLocation = errors.New("invalid location")

// Location represents a geographic coordinate pair (latitude/longitude).
//
// Go Learning Note — Value Types vs Reference Types:
// Location is a small, immutable data holder passed by value. Copying 16
// bytes is cheaper than chasing a pointer, and the copy can never be mutated
// behind the caller's back.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// NewLocation creates a Location value from latitude and longitude.
func NewLocation(lat, lng float64) Location {
	return Location{Latitude: lat, Longitude: lng}
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: %f, %f", ErrInvalidLocation, l.Latitude, l.Longitude)
	}
	return nil
}

// Micro returns the coordinates scaled to integer micro-degrees.
func (l Location) Micro() (lat, lng int64) {
	return int64(math.Round(l.Latitude * MicroDegrees)), int64(math.Round(l.Longitude * MicroDegrees))
}

// LocationFromMicro is the inverse of Micro.
func LocationFromMicro(lat, lng int64) Location {
	return Location{
		Latitude:  float64(lat) / MicroDegrees,
		Longitude: float64(lng) / MicroDegrees,
	}
}

// String renders the raw "lat, lng" form used when no place name is known.
func (l Location) String() string {
	return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
}

// ParseLocation reads a "lat, lng" string. Ride origins are free text, so
// callers must treat a failure here as "not a coordinate", not as bad input.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	loc := NewLocation(lat, lng)
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}
